package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// persist stores the result as node properties. Stale assignments from an
// earlier run are cleared on every candidate node first, then both nodes of
// each pair get the subgraph index and their counterpart's id.
//
// Writers implementing BatchWriter get the whole result in one call.
// Otherwise writes go node by node and continue past individual failures;
// all of them are reported together, wrapped in ErrPersist.
func (e *Engine) persist(ctx context.Context, res *Result, smallIdx, largeIdx *IndexMap) error {
	ctx, span := tracer.Start(ctx, "match.persist",
		trace.WithAttributes(attribute.Int("pairs", res.MatchedPairs())))
	defer span.End()

	stale, set := resultWrites(res, smallIdx, largeIdx)
	if bw, ok := e.writer.(BatchWriter); ok {
		if err := bw.ReplaceNodeProperties(ctx, stale, []string{PropSubgraphIndex, PropMatchingNodeID}, set); err != nil {
			return e.persistFailed(span, []error{err})
		}
		return nil
	}

	var errs []error
	for _, id := range stale {
		if err := e.writer.RemoveNodeProperties(ctx, id, PropSubgraphIndex, PropMatchingNodeID); err != nil {
			errs = append(errs, fmt.Errorf("clear node %d: %w", id, err))
		}
	}
	for _, sg := range res.Subgraphs {
		for _, p := range sg.Pairs {
			for _, id := range []NodeID{p.Small, p.Large} {
				props, ok := set[id]
				if !ok {
					continue
				}
				delete(set, id)
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					return e.persistFailed(span, errs)
				}
				if err := e.writer.SetNodeProperties(ctx, id, props); err != nil {
					errs = append(errs, fmt.Errorf("node %d: %w", id, err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return e.persistFailed(span, errs)
	}
	return nil
}

// resultWrites returns every candidate node, deduplicated, and the
// properties each matched node receives.
func resultWrites(res *Result, smallIdx, largeIdx *IndexMap) ([]NodeID, map[NodeID]map[string]string) {
	stale := make([]NodeID, 0, smallIdx.Len()+largeIdx.Len())
	seen := make(map[NodeID]struct{}, smallIdx.Len()+largeIdx.Len())
	for _, idx := range []*IndexMap{smallIdx, largeIdx} {
		for p := 0; p < idx.Len(); p++ {
			id := idx.ID(p)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			stale = append(stale, id)
		}
	}

	set := make(map[NodeID]map[string]string, 2*res.MatchedPairs())
	for _, sg := range res.Subgraphs {
		k := strconv.Itoa(sg.Index)
		for _, p := range sg.Pairs {
			set[p.Small] = map[string]string{
				PropSubgraphIndex:  k,
				PropMatchingNodeID: strconv.FormatUint(uint64(p.Large), 10),
			}
			if p.Small != p.Large {
				set[p.Large] = map[string]string{
					PropSubgraphIndex:  k,
					PropMatchingNodeID: strconv.FormatUint(uint64(p.Small), 10),
				}
			}
		}
	}
	return stale, set
}

func (e *Engine) persistFailed(span trace.Span, errs []error) error {
	err := fmt.Errorf("%w: %w", ErrPersist, errors.Join(errs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "persist failed")
	slog.Error("persisting match results failed", "failures", len(errs), "error", err)
	return err
}
