// Package finalize implements the finalize pass of the annotation
// pipeline: it claims one in-flight document, polls that document's
// detection jobs, and on completion converts the merged results into
// annotation edges and advances the whole batch.
package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cognitedata/annotator/internal/config"
	"github.com/cognitedata/annotator/internal/detection"
	"github.com/cognitedata/annotator/internal/edges"
	"github.com/cognitedata/annotator/internal/state"
)

// claimScanLimit bounds how many Processing records one pass inspects
// while looking for a claimable one.
const claimScanLimit = 50

// Archiver persists raw job payloads for audit.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Coordinator runs the finalize pass.
type Coordinator struct {
	states  state.System
	edges   edges.System
	client  detection.Client
	archive Archiver
	cfg     config.AnnotationConfig
	logger  *slog.Logger
}

// New creates a finalize coordinator. archive may be nil to skip payload
// auditing.
func New(
	states state.System,
	edgeSys edges.System,
	client detection.Client,
	archive Archiver,
	cfg config.AnnotationConfig,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		states:  states,
		edges:   edgeSys,
		client:  client,
		archive: archive,
		cfg:     cfg,
		logger:  logger.With("coordinator", "finalize"),
	}
}

// Run executes one finalize pass: claim a single Processing record, then
// operate on its entire submission batch. It reports whether any batch
// advanced; false with a nil error means nothing was claimable or the
// claimed batch's jobs are still running, and the caller should back off.
func (c *Coordinator) Run(ctx context.Context) (bool, error) {
	claimed, err := c.claim(ctx)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}

	batch, err := c.states.ListByJob(ctx, claimed.JobHandle())
	if err != nil {
		c.release(ctx, claimed)
		return false, fmt.Errorf("list batch %s: %w", claimed.JobHandle(), err)
	}

	detectionPoll, patternPoll, err := c.pollJobs(ctx, claimed)
	if err != nil {
		switch {
		case errors.Is(err, detection.ErrJobNotFound):
			// The service no longer knows the job; resubmit the batch.
			c.retreatBatch(ctx, batch, claimed, &detection.Poll{
				State:   detection.StateFailed,
				Message: "detection job expired before finalization",
			})
			return true, nil
		case detection.Transient(err):
			c.logger.Warn("poll failed, backing off", "job", claimed.JobHandle(), "error", err)
			c.release(ctx, claimed)
			return false, nil
		default:
			c.release(ctx, claimed)
			return false, err
		}
	}

	if running(detectionPoll) || running(patternPoll) {
		// Jobs still in flight: release the claim so any worker can pick
		// the batch up on a later tick.
		c.release(ctx, claimed)
		return false, nil
	}

	if failure := failedPoll(detectionPoll, patternPoll); failure != nil {
		c.retreatBatch(ctx, batch, claimed, failure)
		return true, nil
	}

	c.archivePayload(ctx, claimed.JobHandle(), detectionPoll, patternPoll)

	byDocument := mergeMatches(detectionPoll, patternPoll)
	for i := range batch {
		c.finalizeDocument(ctx, &batch[i], claimed, byDocument[batch[i].DocumentID])
	}

	c.logger.Info("batch finalized", "job", claimed.JobHandle(), "documents", len(batch))
	return true, nil
}

// claim takes exclusive ownership of one Processing record via a version
// bump. Records that conflict were claimed by another worker and are
// skipped.
func (c *Coordinator) claim(ctx context.Context) (*state.Record, error) {
	processing, err := c.states.ListProcessing(ctx, claimScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list processing records: %w", err)
	}

	for i := range processing {
		rec := &processing[i]
		if rec.JobHandle() == "" {
			continue
		}

		updated, err := c.states.Transition(ctx, rec, state.StatusProcessing, nil)
		if err != nil {
			if errors.Is(err, state.ErrVersionConflict) {
				continue
			}
			return nil, fmt.Errorf("claim %s: %w", rec.DocumentID, err)
		}
		return updated, nil
	}

	return nil, nil
}

// release drops a claim without advancing the record. A conflict here
// means someone else already moved it, which is fine.
func (c *Coordinator) release(ctx context.Context, rec *state.Record) {
	if _, err := c.states.Transition(ctx, rec, state.StatusProcessing, nil); err != nil {
		if !errors.Is(err, state.ErrVersionConflict) {
			c.logger.Error("claim release failed", "document", rec.DocumentID, "error", err)
		}
	}
}

func (c *Coordinator) pollJobs(ctx context.Context, rec *state.Record) (*detection.Poll, *detection.Poll, error) {
	var detectionPoll, patternPoll *detection.Poll

	if rec.DetectionJobID != nil {
		p, err := c.client.Poll(ctx, detection.Handle(*rec.DetectionJobID))
		if err != nil {
			return nil, nil, fmt.Errorf("poll detection job %s: %w", *rec.DetectionJobID, err)
		}
		detectionPoll = p
	}

	if rec.PatternJobID != nil {
		p, err := c.client.Poll(ctx, detection.Handle(*rec.PatternJobID))
		if err != nil {
			return nil, nil, fmt.Errorf("poll pattern job %s: %w", *rec.PatternJobID, err)
		}
		patternPoll = p
	}

	return detectionPoll, patternPoll, nil
}

// retreatBatch handles a failed job: every record in the batch either
// returns to Retry for resubmission or lands in Failed when the failure
// is permanent or the retry budget is spent.
func (c *Coordinator) retreatBatch(ctx context.Context, batch []state.Record, claimed *state.Record, failure *detection.Poll) {
	for i := range batch {
		rec := &batch[i]
		if rec.DocumentID == claimed.DocumentID {
			// The claim bumped this record's version.
			rec = claimed
		}

		target := state.StatusRetry
		if failure.Permanent || rec.RetryCount+1 >= c.cfg.MaxRetryAttempts {
			target = state.StatusFailed
		}

		_, err := c.states.Transition(ctx, rec, target, func(r *state.Record) {
			r.RetryCount++
			r.DetectionJobID = nil
			r.PatternJobID = nil
			msg := failure.Message
			r.ErrorMessage = &msg
		})
		if err != nil && !errors.Is(err, state.ErrVersionConflict) {
			c.logger.Error("batch retreat failed", "document", rec.DocumentID, "error", err)
		}
	}

	c.logger.Warn("batch jobs failed",
		"documents", len(batch),
		"permanent", failure.Permanent,
		"message", failure.Message)
}

// finalizeDocument writes one document's edges and advances its record.
func (c *Coordinator) finalizeDocument(ctx context.Context, rec, claimed *state.Record, matches []documentMatch) {
	docEdges := c.buildEdges(rec.DocumentID, matches)

	if rec.FirstPass() {
		removed, err := c.edges.CleanDocument(ctx, rec.DocumentID)
		if err != nil {
			c.logger.Error("document cleanup failed", "document", rec.DocumentID, "error", err)
			return
		}
		if removed > 0 {
			c.logger.Info("stale edges removed", "document", rec.DocumentID, "count", removed)
		}
	}

	if len(docEdges) > 0 {
		if err := c.edges.WriteBatch(ctx, docEdges); err != nil {
			c.logger.Error("edge write failed", "document", rec.DocumentID, "error", err)
			return
		}
	}

	target := state.StatusAnnotated
	var mutate state.Mutation

	if remaining(rec, c.cfg.PageRange) {
		target = state.StatusRetry
		mutate = func(r *state.Record) {
			r.PageOffset += c.cfg.PageRange
			r.DetectionJobID = nil
			r.PatternJobID = nil
			r.ErrorMessage = nil
		}
	} else {
		mutate = func(r *state.Record) {
			r.ErrorMessage = nil
		}
	}

	// The claimed record's version advanced when it was claimed.
	if rec.DocumentID == claimed.DocumentID {
		rec = claimed
	}

	if _, err := c.states.Transition(ctx, rec, target, mutate); err != nil {
		if !errors.Is(err, state.ErrVersionConflict) {
			c.logger.Error("record advance failed", "document", rec.DocumentID, "error", err)
		}
		return
	}

	c.logger.Debug("document advanced",
		"document", rec.DocumentID,
		"status", target,
		"edges", len(docEdges))
}

// buildEdges converts a document's merged matches into annotation edges,
// discarding matches below the suggestion threshold.
func (c *Coordinator) buildEdges(documentID string, matches []documentMatch) []edges.Edge {
	var out []edges.Edge

	for _, m := range matches {
		if m.match.Confidence < c.cfg.AutoSuggestThreshold {
			continue
		}

		status := edges.StatusSuggested
		if m.match.Confidence >= c.cfg.AutoApprovalThreshold {
			status = edges.StatusApproved
		}

		region := edges.Region{
			Page: m.match.Box.Page,
			XMin: m.match.Box.XMin,
			YMin: m.match.Box.YMin,
			XMax: m.match.Box.XMax,
			YMax: m.match.Box.YMax,
		}

		if m.provisional {
			// Provisional edges stay Suggested regardless of confidence;
			// promotion decides their fate.
			out = append(out, edges.Edge{
				SourceDocument: documentID,
				Text:           m.match.Text,
				Confidence:     m.match.Confidence,
				Region:         region,
				Status:         edges.StatusSuggested,
			})
			continue
		}

		for _, entityID := range m.match.EntityIDs {
			out = append(out, edges.Edge{
				SourceDocument: documentID,
				TargetEntity:   &entityID,
				Text:           m.match.Text,
				Confidence:     m.match.Confidence,
				Region:         region,
				Status:         status,
			})
		}
	}

	return out
}

func (c *Coordinator) archivePayload(ctx context.Context, jobID string, detectionPoll, patternPoll *detection.Poll) {
	if c.archive == nil {
		return
	}

	payload, err := json.Marshal(map[string]*detection.Poll{
		"detection": detectionPoll,
		"pattern":   patternPoll,
	})
	if err != nil {
		c.logger.Error("payload encoding failed", "job", jobID, "error", err)
		return
	}

	key := fmt.Sprintf("jobs/%s.json", jobID)
	if err := c.archive.Put(ctx, key, payload, "application/json"); err != nil {
		c.logger.Error("payload archive failed", "job", jobID, "key", key, "error", err)
	}
}

// documentMatch pairs a match with its detection mode for edge building.
type documentMatch struct {
	match       detection.Match
	provisional bool
}

// mergeMatches combines the entity and pattern job results per document.
// When a pattern match reports the same page and bounding box as an
// entity match, the resolved entity match wins and the pattern duplicate
// is dropped.
func mergeMatches(detectionPoll, patternPoll *detection.Poll) map[string][]documentMatch {
	merged := make(map[string][]documentMatch)
	seen := make(map[string]map[string]bool)

	if detectionPoll != nil {
		for _, m := range detectionPoll.Matches {
			merged[m.DocumentID] = append(merged[m.DocumentID], documentMatch{match: m})

			if seen[m.DocumentID] == nil {
				seen[m.DocumentID] = make(map[string]bool)
			}
			seen[m.DocumentID][regionKey(m.Box)] = true
		}
	}

	if patternPoll != nil {
		for _, m := range patternPoll.Matches {
			if seen[m.DocumentID][regionKey(m.Box)] {
				continue
			}
			merged[m.DocumentID] = append(merged[m.DocumentID], documentMatch{match: m, provisional: true})
		}
	}

	return merged
}

func regionKey(b detection.Box) string {
	return edges.Region{
		Page: b.Page,
		XMin: b.XMin,
		YMin: b.YMin,
		XMax: b.XMax,
		YMax: b.YMax,
	}.Key()
}

func running(p *detection.Poll) bool {
	return p != nil && p.State == detection.StateRunning
}

func failedPoll(polls ...*detection.Poll) *detection.Poll {
	for _, p := range polls {
		if p != nil && p.State == detection.StateFailed {
			return p
		}
	}
	return nil
}

// remaining reports whether the document has pages beyond the window the
// just-finalized jobs covered.
func remaining(rec *state.Record, pageRange int) bool {
	return rec.PageCount != nil && rec.PageOffset+pageRange < *rec.PageCount
}
