package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// ContextRetriever queries the four retrieval tiers of a chat turn
type ContextRetriever struct {
	index    interfaces.SimilarityIndex
	cfg      config.ChatConfig
	keywords []string
}

func NewContextRetriever(index interfaces.SimilarityIndex, cfg config.ChatConfig) *ContextRetriever {
	keywords := make([]string, 0, len(cfg.HistoricalKeywords))
	for _, kw := range cfg.HistoricalKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &ContextRetriever{index: index, cfg: cfg, keywords: keywords}
}

// RecallRequested reports whether message contains any historical keyword, case-insensitively
func (r *ContextRetriever) RecallRequested(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type tierPlan struct {
	tier  types.Tier
	query model.SimilarityQuery
	cfg   config.TierConfig
	skip  bool
}

func (r *ContextRetriever) plan(userID, message, collection string) []tierPlan {
	userFilter := map[string]string{model.UserIDKey: userID}

	return []tierPlan{
		{
			tier: types.TierPastQA,
			cfg:  r.cfg.PastQA,
			query: model.SimilarityQuery{
				Collection: r.cfg.PastQA.Collection,
				Text:       message,
				Limit:      r.cfg.PastQA.Limit,
				Where:      userFilter,
			},
		},
		{
			tier: types.TierGeneral,
			cfg:  r.cfg.General,
			query: model.SimilarityQuery{
				Collection: collection,
				Text:       message,
				Limit:      r.cfg.General.Limit,
			},
		},
		{
			tier: types.TierHistorical,
			cfg:  r.cfg.Historical,
			skip: !r.RecallRequested(message),
			query: model.SimilarityQuery{
				Collection: r.cfg.Historical.Collection,
				Text:       message,
				Limit:      r.cfg.Historical.Limit,
				Where:      userFilter,
			},
		},
		{
			tier: types.TierCognitive,
			cfg:  r.cfg.Cognitive,
			query: model.SimilarityQuery{
				Collection: r.cfg.Cognitive.Collection,
				Text:       message,
				Limit:      r.cfg.Cognitive.Limit,
			},
		},
	}
}

// Retrieve runs every tier concurrently. A failing tier is logged and
// contributes nothing; it never affects the other tiers.
func (r *ContextRetriever) Retrieve(ctx context.Context, userID, message, collection string) *model.RetrievedContext {
	plans := r.plan(userID, message, collection)
	results := make([]*model.TierResult, len(plans))

	var eg errgroup.Group
	for i, p := range plans {
		if p.skip {
			results[i] = &model.TierResult{Tier: p.tier, Skipped: true}
			continue
		}
		eg.Go(func() error {
			results[i] = r.queryTier(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()

	logger := logging.From(ctx)
	for _, res := range results {
		switch {
		case res.Skipped:
			logger.Debug("tier skipped", "tier", res.Tier)
		case res.Err != nil:
			logger.Warn("tier query failed", "tier", res.Tier, "user_id", userID, "error", res.Err)
		default:
			logger.Debug("tier retrieved", "tier", res.Tier, "count", len(res.Fragments))
		}
	}

	return model.NewRetrievedContext(results...)
}

func (r *ContextRetriever) queryTier(ctx context.Context, p tierPlan) (result *model.TierResult) {
	result = &model.TierResult{Tier: p.tier}

	defer func() {
		if rec := recover(); rec != nil {
			result = &model.TierResult{
				Tier: p.tier,
				Err:  goerr.New("panic in tier query", goerr.V(TierKey, p.tier), goerr.V("panic", rec)),
			}
		}
	}()

	if r.index == nil {
		result.Err = goerr.New("similarity index is not configured", goerr.V(TierKey, p.tier))
		return result
	}

	fragments, err := r.index.Query(ctx, p.query)
	if err != nil {
		result.Err = goerr.Wrap(err, "failed to query tier",
			goerr.V(TierKey, p.tier), goerr.V(model.CollectionKey, p.query.Collection))
		return result
	}

	result.Fragments = filterBySimilarity(fragments, p.cfg.Threshold)
	return result
}

// filterBySimilarity keeps fragments whose similarity reaches threshold, preserving index order
func filterBySimilarity(fragments []*model.RetrievedFragment, threshold float64) []*model.RetrievedFragment {
	kept := make([]*model.RetrievedFragment, 0, len(fragments))
	for _, f := range fragments {
		if f == nil {
			continue
		}
		if f.Similarity() >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}
