package render

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/fyrsmithlabs/finsight/internal/mock"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var (
	apple = stock.Record{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", Price: "189.5", MarketCap: "2.9T", PERatio: "29.1", DividendYield: "0.5"}
	exxon = stock.Record{Symbol: "XOM", Name: "Exxon Mobil", Sector: "Energy", Price: "104.3", PERatio: "12.4"}
)

func TestLLMRenderer_AssemblesStream(t *testing.T) {
	model := mock.NewChatModel("Apple Inc. (AAPL) trades at a Price of 189.5 with a PE_Ratio of 29.1.")

	got, err := NewLLMRenderer(model, time.Second, nil).Render(context.Background(), apple)
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc. (AAPL) trades at a Price of 189.5 with a PE_Ratio of 29.1.", got)
	assert.Equal(t, SystemPrompt, model.LastSystem())
	assert.Equal(t, apple.JSON(), model.LastUser())
}

func TestLLMRenderer_MultipleRecordsSentAsArray(t *testing.T) {
	model := mock.NewChatModel("- Apple\n- Exxon")

	_, err := NewLLMRenderer(model, 0, nil).Render(context.Background(), apple, exxon)
	require.NoError(t, err)

	var sent []stock.Record
	require.NoError(t, json.Unmarshal([]byte(model.LastUser()), &sent))
	assert.Equal(t, []stock.Record{apple, exxon}, sent)
}

func TestLLMRenderer_Errors(t *testing.T) {
	r := NewLLMRenderer(&mock.ChatModel{Err: errors.New("503")}, 0, nil)
	_, err := r.Render(context.Background(), apple)
	assert.ErrorContains(t, err, "503")

	_, err = NewLLMRenderer(mock.NewChatModel("x"), 0, nil).Render(context.Background())
	assert.True(t, errors.Is(err, ErrNoRecords))

	_, err = NewLLMRenderer(mock.NewChatModel("   "), 0, nil).Render(context.Background(), apple)
	assert.True(t, errors.Is(err, llm.ErrEmptyResponse))
}

func TestLLMRenderer_Timeout(t *testing.T) {
	model := &mock.ChatModel{
		GenerateFunc: func(ctx context.Context, _ []llms.MessageContent) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	_, err := NewLLMRenderer(model, 10*time.Millisecond, nil).Render(context.Background(), apple)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPlain_Single(t *testing.T) {
	got := Plain(exxon)
	assert.Equal(t, "Exxon Mobil (XOM)\nSector: Energy\nPrice: 104.3\nMarketCap: Data not available\nPE_Ratio: 12.4\nDividend_Yield: Data not available", got)
}

func TestPlain_Multiple(t *testing.T) {
	got := Plain(apple, exxon)
	assert.Equal(t,
		"- Apple Inc. (AAPL): Price 189.5, MarketCap 2.9T, PE_Ratio 29.1, Dividend_Yield 0.5\n"+
			"- Exxon Mobil (XOM): Price 104.3, MarketCap Data not available, PE_Ratio 12.4, Dividend_Yield Data not available",
		got)
}

func TestPlain_Edges(t *testing.T) {
	assert.Empty(t, Plain())
	assert.Contains(t, Plain(stock.Record{Price: "1"}), "Unknown company")
	assert.Contains(t, Plain(stock.Record{Symbol: "IBM"}), "IBM\n")
}
