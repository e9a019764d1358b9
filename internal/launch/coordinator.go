// Package launch implements the launch pass of the annotation pipeline:
// it groups ready documents by scope, resolves the scope's candidate
// entities and patterns, submits detection jobs in bounded batches, and
// claims the affected state records into Processing.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cognitedata/annotator/internal/config"
	"github.com/cognitedata/annotator/internal/detection"
	"github.com/cognitedata/annotator/internal/entities"
	"github.com/cognitedata/annotator/internal/state"
)

// scopeGroupWorkers bounds concurrent scope-group submissions per pass.
const scopeGroupWorkers = 4

// PageCounter resolves a document's page count when the state record does
// not carry one. Implementations may need to fetch the source document.
type PageCounter interface {
	PageCount(ctx context.Context, documentID string) (int, error)
}

// Coordinator runs the launch pass. All collaborators are injected; any
// Client / System implementation satisfying the contracts will do.
type Coordinator struct {
	states   state.System
	entities entities.System
	client   detection.Client
	pages    PageCounter
	cfg      config.AnnotationConfig
	logger   *slog.Logger
}

// New creates a launch coordinator. pages may be nil, in which case only
// page counts already present on state records drive chunking.
func New(
	states state.System,
	ents entities.System,
	client detection.Client,
	pages PageCounter,
	cfg config.AnnotationConfig,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		states:   states,
		entities: ents,
		client:   client,
		pages:    pages,
		cfg:      cfg,
		logger:   logger.With("coordinator", "launch"),
	}
}

// Run executes one launch pass and returns the number of state records
// claimed into Processing. Submission failures never abort the pass: the
// affected records keep their status and are retried on the next tick.
func (c *Coordinator) Run(ctx context.Context) (int, error) {
	ready, err := c.states.ListReady(ctx, c.cfg.ReadyLimit)
	if err != nil {
		return 0, fmt.Errorf("list ready records: %w", err)
	}
	if len(ready) == 0 {
		return 0, nil
	}

	groups := groupByScope(ready)
	claimed := make(chan int, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scopeGroupWorkers)

	for key, recs := range groups {
		key, recs := key, recs
		g.Go(func() error {
			n, err := c.launchGroup(gctx, key, recs)
			if err != nil {
				// Scope-group failures are isolated; the records stay
				// ready and the next tick retries them.
				c.logger.Error("scope group launch failed", "scope", key, "error", err)
				return nil
			}
			claimed <- n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(claimed)

	total := 0
	for n := range claimed {
		total += n
	}

	c.logger.Info("launch pass complete", "ready", len(ready), "claimed", total)
	return total, nil
}

func (c *Coordinator) launchGroup(ctx context.Context, key string, recs []state.Record) (int, error) {
	scopeKey := recs[0].ScopeKey

	cache, err := c.entities.EnsureScopeCache(ctx, scopeKey, entities.CacheOptions{
		TTL:            c.cfg.CacheTTLDuration(),
		ManualPatterns: c.cfg.ManualPatterns,
	})
	if err != nil {
		return 0, fmt.Errorf("ensure scope cache %s: %w", scopeKey, err)
	}

	// A scope with no registered entities falls back to the scope-wide
	// candidate set when one is configured.
	if len(cache.Entities) == 0 && c.cfg.FallbackScope != "" && c.cfg.FallbackScope != scopeKey {
		cache, err = c.entities.EnsureScopeCache(ctx, c.cfg.FallbackScope, entities.CacheOptions{
			TTL:            c.cfg.CacheTTLDuration(),
			ManualPatterns: c.cfg.ManualPatterns,
		})
		if err != nil {
			return 0, fmt.Errorf("ensure fallback cache %s: %w", c.cfg.FallbackScope, err)
		}
	}

	patternMode := c.cfg.PatternMode && len(cache.Patterns) > 0
	if len(cache.Entities) == 0 && !patternMode {
		c.logger.Warn("scope group has no candidates", "group", key, "documents", len(recs))
		return 0, nil
	}

	claimed := 0
	partition(recs, c.cfg.BatchSize)(func(batch []state.Record) bool {
		n, err := c.submitBatch(ctx, cache, batch, patternMode)
		if err != nil {
			// The batch's records were left untouched; later batches in
			// the group may still succeed.
			c.logger.Error("batch submission failed", "group", key, "size", len(batch), "error", err)
			return true
		}
		claimed += n
		return true
	})

	return claimed, nil
}

func (c *Coordinator) submitBatch(
	ctx context.Context,
	cache *entities.ScopeCache,
	batch []state.Record,
	patternMode bool,
) (int, error) {
	refs := make([]detection.DocumentRef, len(batch))
	for i := range batch {
		refs[i] = c.documentRef(ctx, &batch[i])
	}

	var detectionJob, patternJob *string

	if len(cache.Entities) > 0 {
		handle, err := c.client.Submit(ctx, detection.SubmitRequest{
			Documents:  refs,
			Candidates: entityCandidates(cache.Entities),
			Mode:       detection.ModeEntities,
		})
		if err != nil {
			return 0, fmt.Errorf("submit entity job: %w", err)
		}
		id := string(handle)
		detectionJob = &id
	}

	if patternMode {
		handle, err := c.client.Submit(ctx, detection.SubmitRequest{
			Documents:  refs,
			Candidates: patternCandidates(cache.Patterns),
			Mode:       detection.ModePatterns,
		})
		if err != nil {
			// No record has been transitioned yet, so the whole batch
			// stays ready and resubmits on the next tick.
			return 0, fmt.Errorf("submit pattern job: %w", err)
		}
		id := string(handle)
		patternJob = &id
	}

	claimed := 0
	for i := range batch {
		rec := &batch[i]

		_, err := c.states.Transition(ctx, rec, state.StatusProcessing, func(r *state.Record) {
			r.DetectionJobID = detectionJob
			r.PatternJobID = patternJob
			r.ErrorMessage = nil
			if pc := c.knownPageCount(ctx, rec); pc != nil {
				r.PageCount = pc
			}
		})
		if err != nil {
			if errors.Is(err, state.ErrVersionConflict) {
				// Another worker claimed this record first; its copy of
				// the batch wins.
				c.logger.Debug("record claimed elsewhere", "document", rec.DocumentID)
				continue
			}
			c.logger.Error("claim failed", "document", rec.DocumentID, "error", err)
			continue
		}
		claimed++
	}

	return claimed, nil
}

// documentRef builds the submission reference for a record, windowing
// oversized documents to the next page chunk so a single job never spans
// more than PageRange pages.
func (c *Coordinator) documentRef(ctx context.Context, rec *state.Record) detection.DocumentRef {
	ref := detection.DocumentRef{DocumentID: rec.DocumentID}

	pc := c.knownPageCount(ctx, rec)
	if pc == nil || *pc <= c.cfg.PageRange {
		return ref
	}

	ref.FirstPage = rec.PageOffset + 1
	ref.LastPage = min(rec.PageOffset+c.cfg.PageRange, *pc)
	return ref
}

func (c *Coordinator) knownPageCount(ctx context.Context, rec *state.Record) *int {
	if rec.PageCount != nil {
		return rec.PageCount
	}
	if c.pages == nil {
		return nil
	}

	count, err := c.pages.PageCount(ctx, rec.DocumentID)
	if err != nil {
		c.logger.Warn("page count lookup failed", "document", rec.DocumentID, "error", err)
		return nil
	}
	return &count
}

func groupByScope(recs []state.Record) map[string][]state.Record {
	groups := make(map[string][]state.Record)
	for _, r := range recs {
		key := r.GroupKey()
		groups[key] = append(groups[key], r)
	}
	return groups
}

func partition(recs []state.Record, size int) func(func([]state.Record) bool) {
	return func(yield func([]state.Record) bool) {
		for start := 0; start < len(recs); start += size {
			end := min(start+size, len(recs))
			if !yield(recs[start:end]) {
				return
			}
		}
	}
}

func entityCandidates(ents []entities.Entity) []detection.Candidate {
	cands := make([]detection.Candidate, len(ents))
	for i, e := range ents {
		texts := make([]string, 0, len(e.Aliases)+1)
		texts = append(texts, e.Name)
		texts = append(texts, e.Aliases...)

		cands[i] = detection.Candidate{ID: e.ID, Texts: texts}
	}
	return cands
}

func patternCandidates(patterns []string) []detection.Candidate {
	cands := make([]detection.Candidate, len(patterns))
	for i, p := range patterns {
		cands[i] = detection.Candidate{Texts: []string{p}}
	}
	return cands
}
