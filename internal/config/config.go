package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Destination selects where a spawned occurrence is created.
type Destination string

const (
	DestinationDNP        Destination = "dnp"
	DestinationSamePage   Destination = "same_page"
	DestinationDNPHeading Destination = "dnp_heading"
)

// AdvanceFrom selects the anchor date for the next occurrence.
type AdvanceFrom string

const (
	AdvanceFromDue        AdvanceFrom = "due"
	AdvanceFromCompletion AdvanceFrom = "completion"
)

// Surface is where repeat/due attributes are human-visible.
type Surface string

const (
	SurfaceChild  Surface = "child"
	SurfaceHidden Surface = "hidden"
)

type Settings struct {
	Destination        Destination `yaml:"destination" json:"destination"`
	DNPHeading         string      `yaml:"dnp_heading" json:"dnp_heading"`
	AdvanceFrom        AdvanceFrom `yaml:"advance_from" json:"advance_from"`
	AttributeSurface   Surface     `yaml:"attribute_surface" json:"attribute_surface"`
	ConfirmBeforeSpawn bool        `yaml:"confirm_before_spawn" json:"confirm_before_spawn"`

	// ProcessedCooldown guards a just-completed block against the
	// re-render of its own completion re-triggering the pipeline.
	ProcessedCooldown time.Duration `yaml:"processed_cooldown" json:"processed_cooldown"`
	// UndoWindow is how long a completion stays undoable.
	UndoWindow time.Duration `yaml:"undo_window" json:"undo_window"`
	// SyncDebounce coalesces child-attribute edits per parent block.
	SyncDebounce time.Duration `yaml:"sync_debounce" json:"sync_debounce"`
	// ContainerRetryDelay is the wait before the single destination
	// re-lookup when a freshly created container is not yet visible.
	ContainerRetryDelay time.Duration `yaml:"container_retry_delay" json:"container_retry_delay"`
}

// UnmarshalYAML decodes durations from human-readable strings ("4s",
// "250ms"); yaml has no native duration scalar.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	type rawSettings struct {
		Destination         Destination `yaml:"destination"`
		DNPHeading          string      `yaml:"dnp_heading"`
		AdvanceFrom         AdvanceFrom `yaml:"advance_from"`
		AttributeSurface    Surface     `yaml:"attribute_surface"`
		ConfirmBeforeSpawn  bool        `yaml:"confirm_before_spawn"`
		ProcessedCooldown   string      `yaml:"processed_cooldown"`
		UndoWindow          string      `yaml:"undo_window"`
		SyncDebounce        string      `yaml:"sync_debounce"`
		ContainerRetryDelay string      `yaml:"container_retry_delay"`
	}
	var r rawSettings
	if err := value.Decode(&r); err != nil {
		return err
	}

	s.Destination = r.Destination
	s.DNPHeading = r.DNPHeading
	s.AdvanceFrom = r.AdvanceFrom
	s.AttributeSurface = r.AttributeSurface
	s.ConfirmBeforeSpawn = r.ConfirmBeforeSpawn

	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"processed_cooldown", r.ProcessedCooldown, &s.ProcessedCooldown},
		{"undo_window", r.UndoWindow, &s.UndoWindow},
		{"sync_debounce", r.SyncDebounce, &s.SyncDebounce},
		{"container_retry_delay", r.ContainerRetryDelay, &s.ContainerRetryDelay},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func (s *Settings) ApplyDefaults() {
	if s.Destination == "" {
		s.Destination = DestinationDNP
	}
	if s.DNPHeading == "" {
		s.DNPHeading = "#Tasks"
	}
	if s.AdvanceFrom == "" {
		s.AdvanceFrom = AdvanceFromDue
	}
	if s.AttributeSurface == "" {
		s.AttributeSurface = SurfaceChild
	}
	if s.ProcessedCooldown == 0 {
		s.ProcessedCooldown = 4 * time.Second
	}
	if s.UndoWindow == 0 {
		s.UndoWindow = 5 * time.Second
	}
	if s.SyncDebounce == 0 {
		s.SyncDebounce = 250 * time.Millisecond
	}
	if s.ContainerRetryDelay == 0 {
		s.ContainerRetryDelay = 150 * time.Millisecond
	}
}

func (s *Settings) Validate() error {
	switch s.Destination {
	case DestinationDNP, DestinationSamePage, DestinationDNPHeading:
	default:
		return fmt.Errorf("unknown destination %q", s.Destination)
	}
	switch s.AdvanceFrom {
	case AdvanceFromDue, AdvanceFromCompletion:
	default:
		return fmt.Errorf("unknown advance_from %q", s.AdvanceFrom)
	}
	switch s.AttributeSurface {
	case SurfaceChild, SurfaceHidden:
	default:
		return fmt.Errorf("unknown attribute_surface %q", s.AttributeSurface)
	}
	return nil
}

// Default returns settings with all defaults applied.
func Default() Settings {
	var s Settings
	s.ApplyDefaults()
	return s
}

func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
