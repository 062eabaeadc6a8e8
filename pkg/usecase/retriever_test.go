package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func TestContextRetriever_RecallRequested(t *testing.T) {
	retriever := usecase.NewContextRetriever(newSpyIndex(), config.DefaultChatConfig())

	tests := []struct {
		message string
		want    bool
	}{
		{message: "What is the refund policy?", want: false},
		{message: "remember what I told you yesterday about my order", want: true},
		{message: "As I said LAST TIME, the box was damaged", want: true},
		{message: "Any INFORMATION on shipping?", want: true},
		{message: "hello", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			gt.Value(t, retriever.RecallRequested(tt.message)).Equal(tt.want)
		})
	}
}

func TestContextRetriever_HistoricalGating(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultChatConfig()

	t.Run("non-triggering message does not query the historical tier", func(t *testing.T) {
		index := newSpyIndex()
		retriever := usecase.NewContextRetriever(index, cfg)

		rc := retriever.Retrieve(ctx, "alice", "What is the refund policy?", "faq")
		gt.Array(t, index.queriesFor(cfg.Historical.Collection)).Length(0)
		gt.Bool(t, rc.Tier(types.TierHistorical).Skipped).True()

		// the other tiers are still queried
		gt.Array(t, index.queriesFor(cfg.PastQA.Collection)).Length(1)
		gt.Array(t, index.queriesFor("faq")).Length(1)
		gt.Array(t, index.queriesFor(cfg.Cognitive.Collection)).Length(1)
	})

	t.Run("triggering message queries the historical tier once", func(t *testing.T) {
		index := newSpyIndex()
		retriever := usecase.NewContextRetriever(index, cfg)

		rc := retriever.Retrieve(ctx, "bob", "Do you remember my order?", "faq")
		queries := index.queriesFor(cfg.Historical.Collection)
		gt.Array(t, queries).Length(1)
		gt.Value(t, queries[0].Where).Equal(map[string]string{"user_id": "bob"})
		gt.Value(t, queries[0].Limit).Equal(cfg.Historical.Limit)
		gt.Bool(t, rc.Tier(types.TierHistorical).Skipped).False()
	})
}

func TestContextRetriever_Scoping(t *testing.T) {
	cfg := config.DefaultChatConfig()
	index := newSpyIndex()
	retriever := usecase.NewContextRetriever(index, cfg)

	retriever.Retrieve(context.Background(), "carol", "hello", "faq")

	pastQA := index.queriesFor(cfg.PastQA.Collection)
	gt.Array(t, pastQA).Length(1).Required()
	gt.Value(t, pastQA[0].Where).Equal(map[string]string{"user_id": "carol"})

	general := index.queriesFor("faq")
	gt.Array(t, general).Length(1).Required()
	gt.Value(t, len(general[0].Where)).Equal(0)
	gt.Value(t, general[0].Text).Equal("hello")

	cognitive := index.queriesFor(cfg.Cognitive.Collection)
	gt.Array(t, cognitive).Length(1).Required()
	gt.Value(t, len(cognitive[0].Where)).Equal(0)
}

func TestContextRetriever_ThresholdFilter(t *testing.T) {
	cfg := config.DefaultChatConfig()
	cfg.General.Threshold = 0.5
	cfg.General.Limit = 10

	index := newSpyIndex()
	index.results["faq"] = []*model.RetrievedFragment{
		fragment("close", "close match", 0.1, nil),
		fragment("edge", "exactly at threshold", 0.5, nil),
		fragment("far", "far away", 0.9, nil),
		fragment("beyond", "unnormalized distance", 1.7, nil),
	}

	retriever := usecase.NewContextRetriever(index, cfg)
	rc := retriever.Retrieve(context.Background(), "alice", "refund", "faq")

	var ids []model.DocumentID
	for _, f := range rc.Tier(types.TierGeneral).Fragments {
		ids = append(ids, f.ID)
	}
	gt.Value(t, ids).Equal([]model.DocumentID{"close", "edge"})
}

func TestContextRetriever_TierIndependence(t *testing.T) {
	cfg := config.DefaultChatConfig()
	cfg.PastQA.Threshold = 0.1
	cfg.General.Threshold = 0.1
	cfg.Historical.Threshold = 0.1
	cfg.Cognitive.Threshold = 0.1

	message := "remember the warranty terms from before"
	allTiers := func() *spyIndex {
		index := newSpyIndex()
		index.results[cfg.PastQA.Collection] = []*model.RetrievedFragment{fragment("p", "past", 0.1, nil)}
		index.results["faq"] = []*model.RetrievedFragment{fragment("g", "general", 0.1, nil)}
		index.results[cfg.Historical.Collection] = []*model.RetrievedFragment{fragment("h", "historical", 0.1, nil)}
		index.results[cfg.Cognitive.Collection] = []*model.RetrievedFragment{fragment("c", "cognitive", 0.1, nil)}
		return index
	}

	collections := map[types.Tier]string{
		types.TierPastQA:     cfg.PastQA.Collection,
		types.TierGeneral:    "faq",
		types.TierHistorical: cfg.Historical.Collection,
		types.TierCognitive:  cfg.Cognitive.Collection,
	}

	for failing, collection := range collections {
		t.Run(string(failing)+" fails", func(t *testing.T) {
			index := allTiers()
			index.failures[collection] = goerr.New("index unreachable")

			rc := usecase.NewContextRetriever(index, cfg).Retrieve(context.Background(), "dave", message, "faq")

			for _, tier := range types.AllTiers() {
				res := rc.Tier(tier)
				if tier == failing {
					gt.Error(t, res.Err)
					gt.Array(t, res.Fragments).Length(0)
					continue
				}
				gt.NoError(t, res.Err)
				gt.Array(t, res.Fragments).Length(1)
			}
			gt.Array(t, rc.Fragments()).Length(3)
		})
	}
}

func TestContextRetriever_NilIndex(t *testing.T) {
	rc := usecase.NewContextRetriever(nil, config.DefaultChatConfig()).
		Retrieve(context.Background(), "erin", "hello", "faq")

	gt.Array(t, rc.Fragments()).Length(0)
	gt.Error(t, rc.Tier(types.TierGeneral).Err)
}
