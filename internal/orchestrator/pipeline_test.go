package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/gate"
	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/live"
	finmock "github.com/fyrsmithlabs/finsight/internal/mock"
	"github.com/fyrsmithlabs/finsight/internal/render"
	"github.com/fyrsmithlabs/finsight/internal/retriever"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const pipelineDim = 16

type liveFunc func(ctx context.Context, query string) (string, error)

func (f liveFunc) Answer(ctx context.Context, query string) (string, error) { return f(ctx, query) }

// newPipeline wires the real components against an in-memory store holding
// records and scripted chat models.
func newPipeline(t *testing.T, records []stock.Record, parse, verdict, rendered string, backend live.Backend) (*Orchestrator, *finmock.ChatModel) {
	t.Helper()
	ctx := context.Background()
	zl := zaptest.NewLogger(t)

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, zl)
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "stock", pipelineDim))
	if len(records) > 0 {
		points := make([]vectorstore.Point, len(records))
		for i, r := range records {
			r = r.WithEmbeddedText()
			points[i] = vectorstore.Point{ID: uint64(i), Vector: finmock.Vector(r.EmbeddedText, pipelineDim), Payload: r.Payload()}
		}
		require.NoError(t, store.Upsert(ctx, "stock", points))
	}

	ret, err := retriever.New(finmock.NewEmbedder(pipelineDim), store, retriever.Config{Collection: "stock"}, zl)
	require.NoError(t, err)

	gateModel := finmock.NewChatModel(verdict)
	orch, err := New(Deps{
		Interpreter: intent.NewLLMInterpreter(finmock.NewChatModel(parse), time.Second, zl),
		Searcher:    ret,
		Gate:        gate.NewLLMGate(gateModel, time.Second, zl),
		Fetcher:     live.NewFetcher(backend, time.Second, zl),
		Renderer:    render.NewLLMRenderer(finmock.NewChatModel(rendered), time.Second, zl),
	})
	require.NoError(t, err)
	return orch, gateModel
}

func TestPipeline_ScenarioA_StoreAnswer(t *testing.T) {
	backend := liveFunc(func(context.Context, string) (string, error) {
		t.Fatal("live backend must not be called")
		return "", nil
	})
	orch, gateModel := newPipeline(t, []stock.Record{apple, microsoft},
		"```json\n{\"stocks_mentioned\":[\"AAPL\"],\"date_range\":\"none\",\"if_vector_or_live\":\"vector\"}\n```",
		"Yes", "Apple Inc. (AAPL) has a PE ratio of 29.1.", backend)

	result, err := orch.Answer(context.Background(), appleQuery)
	require.NoError(t, err)

	assert.Equal(t, SourceStore, result.Source)
	assert.NotNil(t, result.Score)
	assert.Contains(t, result.Message, "PE ratio")
	assert.Equal(t, []string{"AAPL"}, result.ParsedQuery.Entities)
	assert.Equal(t, 1, gateModel.CallCount())
}

func TestPipeline_ScenarioB_EmptyStore(t *testing.T) {
	backend := liveFunc(func(_ context.Context, q string) (string, error) {
		return "Apple Current Price: $189.50", nil
	})
	orch, gateModel := newPipeline(t, nil, `{"stocks_mentioned":["AAPL"],"date_range":"none","if_vector_or_live":"vector"}`, "yes", "unused", backend)

	result, err := orch.Answer(context.Background(), appleQuery)
	require.NoError(t, err)

	assert.Equal(t, SourceLive, result.Source)
	assert.Nil(t, result.Score)
	assert.Equal(t, "Apple Current Price: $189.50", result.Message)
	assert.Zero(t, gateModel.CallCount())
}

func TestPipeline_MalformedIntentStillSearches(t *testing.T) {
	backend := liveFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	})
	orch, _ := newPipeline(t, []stock.Record{apple}, "I think you mean Apple", "no", "unused", backend)

	result, err := orch.Answer(context.Background(), appleQuery)
	require.NoError(t, err)

	assert.Equal(t, intent.Default(), result.ParsedQuery)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, live.ErrorMessage, result.Message)
}

func TestPipeline_ScenarioD_MissingCollection(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, nil)
	require.NoError(t, err)
	ret, err := retriever.New(finmock.NewEmbedder(pipelineDim), store, retriever.Config{Collection: "stock"}, nil)
	require.NoError(t, err)

	orch, err := New(Deps{
		Interpreter: intent.NewLLMInterpreter(finmock.NewChatModel(`{"stocks_mentioned":[],"date_range":"none","if_vector_or_live":"vector"}`), 0, nil),
		Searcher:    ret,
		Gate:        gate.NewLLMGate(finmock.NewChatModel("yes"), 0, nil),
		Fetcher:     live.NewFetcher(liveFunc(func(context.Context, string) (string, error) { return "live", nil }), 0, nil),
		Renderer:    render.NewLLMRenderer(finmock.NewChatModel("r"), 0, nil),
	})
	require.NoError(t, err)

	result, err := orch.Answer(context.Background(), appleQuery)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrRetrievalFailed))
	assert.True(t, errors.Is(err, retriever.ErrSearchFailed))
	assert.True(t, errors.Is(err, vectorstore.ErrCollectionNotFound))
}
