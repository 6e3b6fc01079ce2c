// Package resolver implements concurrent reference resolution: given a
// slice of reference.Reference values, most of them plain ids, fetch every
// unresolved target and fill the slots back in. Each unresolved reference
// is fetched with its own Resolve call; the lookups are not combined into
// one request, and duplicate guids are fetched once per slot.
package resolver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"oasgo.dev/core/record"
	"oasgo.dev/core/reference"
)

// MissingRefsError collects the resolve failures from a batch, keyed by the
// guid that failed.
type MissingRefsError struct {
	Errs []*reference.ResolveError
}

func (e *MissingRefsError) Error() string {
	return fmt.Sprintf("resolver: failed to resolve %d reference(s)", len(e.Errs))
}

// ResolveAll resolves a batch of references concurrently against the given
// resolver, writing each result back into its original slot.
//
// Only the unresolved references are fetched; already-resolved entries are
// left untouched. The fetch for slot i is written back to slot i, not to
// the i-th position among the unresolved subset: a batch with resolved
// entries interleaved among unresolved ones must not shift results into the
// wrong slots just because some entries were skipped.
func ResolveAll[T any](ctx context.Context, resolver reference.Resolver, refs []reference.Reference[T]) error {
	type pending struct {
		index int
		guid  record.Guid
	}

	var toFetch []pending
	for i := range refs {
		if refs[i].Resolved() {
			continue
		}
		toFetch = append(toFetch, pending{index: i, guid: refs[i].Guid()})
	}
	if len(toFetch) == 0 {
		return nil
	}

	errs := make([]*reference.ResolveError, len(toFetch))
	g, gctx := errgroup.WithContext(ctx)
	for slot, p := range toFetch {
		slot, p := slot, p
		g.Go(func() error {
			untyped, err := resolver.Resolve(gctx, p.guid)
			if err != nil {
				errs[slot] = &reference.ResolveError{Guid: p.guid, Err: err}
				return nil
			}
			typed, err := record.DecodeTyped[T](untyped)
			if err != nil {
				errs[slot] = &reference.ResolveError{Guid: p.guid, Err: err}
				return nil
			}
			refs[p.index].SetResolved(typed)
			return nil
		})
	}
	// The per-fetch goroutines never return a non-nil error themselves
	// (failures are recorded in errs instead), so Wait returns nil here; a
	// cancelled context shows up as per-reference failures in errs.
	if err := g.Wait(); err != nil {
		return err
	}

	var failed []*reference.ResolveError
	for _, e := range errs {
		if e != nil {
			failed = append(failed, e)
		}
	}
	if len(failed) > 0 {
		return &MissingRefsError{Errs: failed}
	}
	return nil
}
