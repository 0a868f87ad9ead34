package graph

import (
	"context"
	"fmt"

	"github.com/maxbolgarin/errm"

	"github.com/onexay/gitgraph/internal/storage"
	"github.com/onexay/gitgraph/internal/types"
)

// EmitStats reports what was written to a sink.
type EmitStats struct {
	Entities int `json:"entities"`
	Links    int `json:"links"`
}

// Emit hands a validated graph to sink. Entities are created in the order the
// builder produced them, followed by every relationship in link order. A sink
// implementing storage.Flusher is flushed once emission ends, also on failure.
func Emit(ctx context.Context, g *Graph, sink storage.Sink) (stats EmitStats, err error) {
	if f, ok := sink.(storage.Flusher); ok {
		defer func() {
			if ferr := f.Flush(context.WithoutCancel(ctx)); ferr != nil && err == nil {
				err = errm.Wrap(ferr, "flush sink")
			}
		}()
	}

	handles := make(map[types.Entity]storage.Handle, len(g.created))

	for _, e := range g.created {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		h, err := sink.Create(ctx, e)
		if err != nil {
			return stats, errm.Wrap(err, fmt.Sprintf("create %s %s", e.EntityKind(), e.EntityKey()))
		}
		handles[e] = h
		stats.Entities++
	}

	for _, l := range g.links {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		from, ok := handles[l.From]
		if !ok {
			return stats, errm.Wrap(ErrInvalidGraph, fmt.Sprintf("no handle for %s %s", l.From.EntityKind(), l.From.EntityKey()))
		}
		to, ok := handles[l.To]
		if !ok {
			return stats, errm.Wrap(ErrInvalidGraph, fmt.Sprintf("no handle for %s %s", l.To.EntityKind(), l.To.EntityKey()))
		}
		if err := sink.Link(ctx, from, l.Relation, to); err != nil {
			return stats, errm.Wrap(err, fmt.Sprintf("link %s %s", l.Relation, l.From.EntityKey()))
		}
		stats.Links++
	}
	return stats, nil
}
