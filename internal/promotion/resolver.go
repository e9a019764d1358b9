package promotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cognitedata/annotator/internal/config"
	"github.com/cognitedata/annotator/internal/edges"
	"github.com/cognitedata/annotator/internal/entities"
	"github.com/cognitedata/annotator/pkg/cache"
)

// Resolver runs the promotion pass over provisional edges. Lookups
// cascade through three tiers: the in-process cache, the persisted
// store, and the entity alias search. Single and None outcomes feed
// back into both caches; Ambiguous outcomes never do.
type Resolver struct {
	edges    edges.System
	entities entities.System
	tier1    cache.Store
	tier2    Store
	cfg      config.AnnotationConfig
	logger   *slog.Logger
}

// NewResolver creates a promotion resolver. tier1 and tier2 may each be
// nil to disable that tier.
func NewResolver(
	edgeSys edges.System,
	ents entities.System,
	tier1 cache.Store,
	tier2 Store,
	cfg config.AnnotationConfig,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		edges:    edgeSys,
		entities: ents,
		tier1:    tier1,
		tier2:    tier2,
		cfg:      cfg,
		logger:   logger.With("coordinator", "promotion"),
	}
}

// Run executes one promotion pass and returns the number of texts whose
// edge groups were resolved to a single entity.
func (r *Resolver) Run(ctx context.Context) (int, error) {
	texts, err := r.edges.ListPromotableTexts(ctx, r.cfg.PromotionLimit)
	if err != nil {
		return 0, fmt.Errorf("list promotable texts: %w", err)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, text := range texts {
		outcome, err := r.resolve(ctx, text)
		if err != nil {
			r.logger.Error("text resolution failed", "text", text, "error", err)
			continue
		}

		updated, err := r.apply(ctx, text, outcome)
		if err != nil {
			r.logger.Error("group update failed", "text", text, "error", err)
			continue
		}

		if outcome.Kind == KindSingle {
			promoted++
		}

		r.logger.Debug("text resolved",
			"text", text,
			"kind", outcome.Kind,
			"edges", updated)
	}

	r.logger.Info("promotion pass complete", "texts", len(texts), "promoted", promoted)
	return promoted, nil
}

// resolve walks the tiers for one text, caching as it goes.
func (r *Resolver) resolve(ctx context.Context, text string) (Outcome, error) {
	key := Normalize(text)

	if r.tier1 != nil {
		if v, ok := r.tier1.Get(key); ok {
			if o, ok := v.(Outcome); ok {
				return o, nil
			}
		}
	}

	if r.tier2 != nil {
		o, err := r.tier2.Lookup(ctx, key)
		if err == nil {
			r.remember(ctx, key, *o, false)
			return *o, nil
		}
		if !errors.Is(err, ErrNotCached) {
			return Outcome{}, err
		}
	}

	matched, err := r.entities.SearchAliases(ctx, "", Variants(text))
	if err != nil {
		return Outcome{}, fmt.Errorf("alias search: %w", err)
	}

	outcome := classify(matched)
	if outcome.Kind != KindAmbiguous {
		r.remember(ctx, key, outcome, true)
	}

	return outcome, nil
}

// remember writes an outcome to the in-process cache, and to the
// persisted store when persist is set.
func (r *Resolver) remember(ctx context.Context, key string, outcome Outcome, persist bool) {
	if r.tier1 != nil {
		r.tier1.Put(key, outcome, r.cfg.PromotionCacheTTLDuration())
	}
	if persist && r.tier2 != nil {
		if err := r.tier2.Save(ctx, key, outcome); err != nil {
			r.logger.Error("outcome save failed", "key", key, "error", err)
		}
	}
}

// apply updates every provisional edge sharing the text according to the
// outcome.
func (r *Resolver) apply(ctx context.Context, text string, outcome Outcome) (int, error) {
	var update edges.GroupUpdate

	switch outcome.Kind {
	case KindSingle:
		entityID := outcome.EntityID
		update = edges.GroupUpdate{
			Status: edges.StatusApproved,
			Target: &entityID,
			Tags:   []string{edges.TagPromoteAttempted, edges.TagPromotedAuto},
		}
	case KindAmbiguous:
		update = edges.GroupUpdate{
			Status: edges.StatusSuggested,
			Tags:   []string{edges.TagPromoteAttempted, edges.TagAmbiguousMatch},
		}
	default:
		update = edges.GroupUpdate{
			Status: edges.StatusRejected,
			Tags:   []string{edges.TagPromoteAttempted},
		}
	}

	return r.edges.UpdateGroup(ctx, text, update)
}

func classify(matched []entities.Entity) Outcome {
	ids := make(map[string]bool)
	for _, e := range matched {
		ids[e.ID] = true
	}

	switch len(ids) {
	case 0:
		return Outcome{Kind: KindNone}
	case 1:
		return Outcome{Kind: KindSingle, EntityID: matched[0].ID}
	default:
		return Outcome{Kind: KindAmbiguous}
	}
}
