package statepath

import (
	"context"
	"errors"
	"time"

	"github.com/RoaringBitmap/roaring"
)

// Invalidate marks dirty every cached address of path and of everything that
// depends on it, walking static and dynamic edges breadth first. Inner roots
// of tracked boundaries are invalidated for the outer paths they map. It
// returns the number of cache entries dirtied.
func (e *Engine) Invalidate(ctx context.Context, root *StateRoot, path string) (int, error) {
	if root == nil {
		return 0, wrapResolutionError("invalidate", path, "", ErrScopeNotFound)
	}
	start, err := ResolvePath(path)
	if err != nil {
		return 0, wrapResolutionError("invalidate", path, root.Name, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	began := time.Now()
	w := &invalidation{engine: e, ctx: ctx, visited: map[*StateRoot]*roaring.Bitmap{}}
	w.walk(root, start)
	e.logger.LogResolution(LogEvent{
		Op:       "invalidate",
		Root:     root.Name,
		Path:     path,
		Duration: time.Since(began),
		Err:      errors.Join(w.errs...),
	})
	return w.dirtied, errors.Join(w.errs...)
}

type invalidation struct {
	engine  *Engine
	ctx     context.Context
	visited map[*StateRoot]*roaring.Bitmap
	dirtied int
	errs    []error
}

func (w *invalidation) walk(root *StateRoot, start *PathDescriptor) {
	seen, ok := w.visited[root]
	if !ok {
		seen = roaring.New()
		w.visited[root] = seen
	}
	if !seen.CheckedAdd(start.ID()) {
		return
	}

	boundaries := w.engine.trackedBoundaries()
	queue := []*PathDescriptor{start}
	for len(queue) > 0 {
		if err := w.ctx.Err(); err != nil {
			w.errs = append(w.errs, err)
			return
		}
		pd := queue[0]
		queue = queue[1:]

		rpd := ResolveRootPath(root, pd)
		n := w.markPath(root, rpd)
		if n > 0 {
			w.dirtied += n
			w.notify(root, pd, n)
		}

		for _, b := range boundaries {
			for _, inner := range b.innerPathsFor(rpd) {
				w.walk(inner.Root, inner.Path)
			}
		}

		for _, dep := range root.deps.Dependents(pd.Path) {
			if seen.CheckedAdd(dep.ID()) {
				queue = append(queue, dep)
			}
		}
	}
}

func (w *invalidation) markPath(root *StateRoot, rpd *RootPathDescriptor) int {
	addrs := root.addresses.forPath(rpd)
	if len(addrs) == 0 {
		return 0
	}
	root.cacheMu.Lock()
	defer root.cacheMu.Unlock()
	n := 0
	for _, addr := range addrs {
		entry := root.cache.GetEntry(addr)
		if entry == nil || entry.Dirty {
			continue
		}
		if root.cache.MarkDirty(addr) {
			n++
		}
	}
	return n
}

func (w *invalidation) notify(root *StateRoot, pd *PathDescriptor, n int) {
	err := w.engine.emitter.Invalidated(w.ctx, activityRoot(root), pd.Path, n)
	if err != nil {
		w.errs = append(w.errs, err)
	}
}
