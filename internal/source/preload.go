package source

import (
	"context"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Preload fetches every distinct reference with at most workers in flight.
// A reference that fails to load is logged and left out of the result; only
// cancellation of ctx is returned as an error.
func Preload(ctx context.Context, f Fetcher, refs []string, workers int, log logrus.FieldLogger) (map[string]image.Image, error) {
	if workers <= 0 {
		workers = 1
	}

	out := make(map[string]image.Image, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		ref := ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := f.Fetch(gctx, ref)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithError(err).WithField("ref", ref).Warn("cutaway skipped")
				return nil
			}
			mu.Lock()
			out[ref] = img
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
