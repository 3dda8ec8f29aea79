package market

import "golang.org/x/sync/errgroup"

// forEach runs fn for 0..n-1 with at most fetchConcurrency in flight and
// returns once all calls have finished. fn reports failures through its own
// results; one failing item never stops the others.
func forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
