package graph

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mlava/better-tasks/internal/model"
)

type memNode struct {
	ID       model.BlockID   `json:"id"`
	Title    string          `json:"title,omitempty"` // non-empty => page
	PageID   model.BlockID   `json:"pageId,omitempty"`
	ParentID model.BlockID   `json:"parentId,omitempty"`
	Text     string          `json:"text,omitempty"`
	Props    model.Props     `json:"props,omitempty"`
	Children []model.BlockID `json:"children,omitempty"`
}

// MemoryStore is an in-memory graph. It is the reference Store used by
// the pipeline tests and backs the file store.
type MemoryStore struct {
	mu           sync.RWMutex
	nodes        map[model.BlockID]*memNode
	pagesByTitle map[string]model.BlockID

	// onChange, when set, runs after every mutation with the lock held.
	// The file store uses it to persist.
	onChange func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:        map[model.BlockID]*memNode{},
		pagesByTitle: map[string]model.BlockID{},
	}
}

func (s *MemoryStore) GenerateID() model.BlockID {
	return model.BlockID(uuid.NewString())
}

func (s *MemoryStore) changedLocked() error {
	if s.onChange == nil {
		return nil
	}
	return s.onChange()
}

func (s *MemoryStore) blockFromNode(n *memNode) model.Block {
	b := model.Block{
		ID:     n.ID,
		PageID: n.PageID,
		Text:   n.Text,
		Props:  n.Props,
	}
	for _, cid := range n.Children {
		if c, ok := s.nodes[cid]; ok {
			b.Children = append(b.Children, model.Child{ID: c.ID, Text: c.Text})
		}
	}
	return b
}

func (s *MemoryStore) ReadBlock(ctx context.Context, id model.BlockID) (model.Block, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return model.Block{}, ErrNotFound
	}
	return s.blockFromNode(n), nil
}

func (s *MemoryStore) WriteText(ctx context.Context, id model.BlockID, text string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Text = text
	return s.changedLocked()
}

func (s *MemoryStore) MergeProps(ctx context.Context, id model.BlockID, patch model.PropsPatch) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&n.Props)
	return s.changedLocked()
}

func (s *MemoryStore) ReplaceProps(ctx context.Context, id model.BlockID, props model.Props) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Props = props
	return s.changedLocked()
}

func (s *MemoryStore) CreateBlock(ctx context.Context, parent model.BlockID, order int, text string, explicitID model.BlockID) (model.BlockID, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.nodes[parent]
	if !ok {
		return "", ErrNotFound
	}

	id := explicitID
	if id == "" {
		id = s.GenerateID()
	}

	pageID := p.PageID
	if p.Title != "" {
		pageID = p.ID
	}

	n := &memNode{
		ID:       id,
		PageID:   pageID,
		ParentID: parent,
		Text:     text,
	}
	s.nodes[id] = n

	if order < 0 || order > len(p.Children) {
		order = len(p.Children)
	}
	p.Children = append(p.Children[:order], append([]model.BlockID{id}, p.Children[order:]...)...)

	if err := s.changedLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) DeleteBlock(ctx context.Context, id model.BlockID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if p, ok := s.nodes[n.ParentID]; ok {
		kept := p.Children[:0]
		for _, cid := range p.Children {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		p.Children = kept
	}
	s.deleteSubtreeLocked(id)
	return s.changedLocked()
}

func (s *MemoryStore) deleteSubtreeLocked(id model.BlockID) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, cid := range n.Children {
		s.deleteSubtreeLocked(cid)
	}
	delete(s.nodes, id)
}

func (s *MemoryStore) FindOrCreatePage(ctx context.Context, title string) (model.BlockID, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.pagesByTitle[title]; ok {
		return id, nil
	}
	id := s.GenerateID()
	s.nodes[id] = &memNode{ID: id, Title: title, PageID: id}
	s.pagesByTitle[title] = id
	if err := s.changedLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) FindOrCreateHeadingChild(ctx context.Context, parent model.BlockID, heading string) (model.BlockID, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.nodes[parent]
	if !ok {
		return "", ErrNotFound
	}
	want := strings.TrimSpace(heading)
	for _, cid := range p.Children {
		if c, ok := s.nodes[cid]; ok && strings.TrimSpace(c.Text) == want {
			return cid, nil
		}
	}

	id := s.GenerateID()
	pageID := p.PageID
	if p.Title != "" {
		pageID = p.ID
	}
	s.nodes[id] = &memNode{ID: id, PageID: pageID, ParentID: parent, Text: heading}
	p.Children = append([]model.BlockID{id}, p.Children...)
	if err := s.changedLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) FindBlockBySeriesID(ctx context.Context, seriesID string) (model.Block, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seriesID == "" {
		return model.Block{}, ErrNotFound
	}
	for _, n := range s.nodes {
		if n.Props.RT.ID == seriesID {
			return s.blockFromNode(n), nil
		}
	}
	return model.Block{}, ErrNotFound
}

// PageTitle reports the title of a page node, for tests and the server.
func (s *MemoryStore) PageTitle(id model.BlockID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.Title == "" {
		return "", false
	}
	return n.Title, true
}

type memState struct {
	Nodes map[model.BlockID]*memNode `json:"nodes"`
	Pages map[string]model.BlockID   `json:"pages"`
}

func (s *MemoryStore) exportLocked() memState {
	return memState{Nodes: s.nodes, Pages: s.pagesByTitle}
}

func (s *MemoryStore) importState(st memState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Nodes == nil {
		st.Nodes = map[model.BlockID]*memNode{}
	}
	if st.Pages == nil {
		st.Pages = map[string]model.BlockID{}
	}
	s.nodes = st.Nodes
	s.pagesByTitle = st.Pages
}
