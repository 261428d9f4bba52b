package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mlava/better-tasks/internal/config"
	"github.com/mlava/better-tasks/internal/graph"
	"github.com/mlava/better-tasks/internal/model"
)

// resolveDestination locates or creates the container the next
// occurrence goes into. The primary destination is retried once after a
// short delay (a freshly created container may not be visible yet),
// then the remaining destinations are tried in a fixed order.
func (c *Coordinator) resolveDestination(ctx context.Context, next time.Time, source model.Block) (model.BlockID, error) {
	order := destinationOrder(c.settings.Destination)

	var lastErr error
	for i, d := range order {
		id, err := c.resolveOne(ctx, d, next, source)
		if err == nil {
			return id, nil
		}
		lastErr = err
		c.logger.Printf("pipeline %s: destination %s: %v", source.ID, d, err)

		if i == 0 {
			// Single retry for the primary only.
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.settings.ContainerRetryDelay):
			}
			if id, err := c.resolveOne(ctx, d, next, source); err == nil {
				return id, nil
			} else {
				lastErr = err
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrContainerUnavailable, lastErr)
}

func destinationOrder(primary config.Destination) []config.Destination {
	switch primary {
	case config.DestinationSamePage:
		return []config.Destination{config.DestinationSamePage, config.DestinationDNP}
	case config.DestinationDNPHeading:
		return []config.Destination{config.DestinationDNPHeading, config.DestinationDNP, config.DestinationSamePage}
	default:
		return []config.Destination{config.DestinationDNP, config.DestinationSamePage}
	}
}

func (c *Coordinator) resolveOne(ctx context.Context, d config.Destination, next time.Time, source model.Block) (model.BlockID, error) {
	switch d {
	case config.DestinationSamePage:
		if source.PageID != "" {
			return source.PageID, nil
		}
		return c.store.FindOrCreatePage(ctx, "Misc")
	case config.DestinationDNP:
		return c.store.FindOrCreatePage(ctx, graph.DatePageTitle(c.store, next))
	case config.DestinationDNPHeading:
		page, err := c.store.FindOrCreatePage(ctx, graph.DatePageTitle(c.store, next))
		if err != nil {
			return "", err
		}
		return c.store.FindOrCreateHeadingChild(ctx, page, c.settings.DNPHeading)
	default:
		return "", fmt.Errorf("unknown destination %q", d)
	}
}
