package calendar

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Composite unions the busy time of several providers. Providers are queried
// concurrently; if any fails the whole fetch fails.
type Composite struct {
	providers []BusyProvider
}

func NewComposite(providers ...BusyProvider) *Composite {
	return &Composite{providers: providers}
}

func (c *Composite) BusyIntervals(ctx context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error) {
	results := make([][]BusyInterval, len(c.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		g.Go(func() error {
			busy, err := p.BusyIntervals(gctx, ownerID, start, end)
			if err != nil {
				return err
			}
			results[i] = busy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []BusyInterval
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
