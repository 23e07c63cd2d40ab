package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ParsedIntent
		wantErr bool
	}{
		{
			name:  "complete",
			input: `{"stocks_mentioned":["AAPL","MSFT"],"date_range":"2024","if_vector_or_live":"vector"}`,
			want:  ParsedIntent{Entities: []string{"AAPL", "MSFT"}, DateConstraint: "2024", Route: RouteVector},
		},
		{
			name:  "live route",
			input: `{"stocks_mentioned":[],"date_range":"none","if_vector_or_live":"live"}`,
			want:  ParsedIntent{Entities: []string{}, DateConstraint: NoDate, Route: RouteLive},
		},
		{
			name:  "fenced",
			input: "```json\n{\"stocks_mentioned\":[\"TSLA\"],\"date_range\":\"none\",\"if_vector_or_live\":\"vector\"}\n```",
			want:  ParsedIntent{Entities: []string{"TSLA"}, DateConstraint: NoDate, Route: RouteVector},
		},
		{
			name:  "null entities and date",
			input: `{"stocks_mentioned":null,"date_range":null,"if_vector_or_live":"vector"}`,
			want:  ParsedIntent{Entities: []string{}, DateConstraint: NoDate, Route: RouteVector},
		},
		{
			name:  "missing entities and date",
			input: `{"if_vector_or_live":"live"}`,
			want:  ParsedIntent{Entities: []string{}, DateConstraint: NoDate, Route: RouteLive},
		},
		{
			name:  "empty date",
			input: `{"stocks_mentioned":["IBM"],"date_range":"","if_vector_or_live":"vector"}`,
			want:  ParsedIntent{Entities: []string{"IBM"}, DateConstraint: NoDate, Route: RouteVector},
		},
		{
			name:  "route case is normalized",
			input: `{"stocks_mentioned":[],"date_range":"none","if_vector_or_live":" LIVE "}`,
			want:  ParsedIntent{Entities: []string{}, DateConstraint: NoDate, Route: RouteLive},
		},
		{name: "missing route", input: `{"stocks_mentioned":["AAPL"],"date_range":"2024"}`, wantErr: true},
		{name: "invalid route", input: `{"stocks_mentioned":["AAPL"],"date_range":"2024","if_vector_or_live":"both"}`, wantErr: true},
		{name: "null route", input: `{"stocks_mentioned":[],"if_vector_or_live":null}`, wantErr: true},
		{name: "not json", input: `Sure! Here is the JSON you asked for`, wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "entities wrong type", input: `{"stocks_mentioned":"AAPL","if_vector_or_live":"vector"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed))
				assert.Equal(t, Default(), got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}\n"))
}

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, []string{}, d.Entities)
	assert.Equal(t, "none", d.DateConstraint)
	assert.Equal(t, RouteVector, d.Route)
	assert.False(t, d.HasDate())

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stocks_mentioned":[],"date_range":"none","if_vector_or_live":"vector"}`, string(data))
}

func TestLLMInterpreter_Interpret(t *testing.T) {
	model := mock.NewChatModel(`{"stocks_mentioned":["AAPL"],"date_range":"none","if_vector_or_live":"vector"}`)
	interp := NewLLMInterpreter(model, time.Second, nil)

	got := interp.Interpret(context.Background(), "What is Apple's PE ratio?")

	assert.Equal(t, ParsedIntent{Entities: []string{"AAPL"}, DateConstraint: NoDate, Route: RouteVector}, got)
	assert.Equal(t, SystemPrompt, model.LastSystem())
	assert.Equal(t, "What is Apple's PE ratio?", model.LastUser())
}

func TestLLMInterpreter_DefaultsOnFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	tests := []struct {
		name  string
		model *mock.ChatModel
	}{
		{"call error", &mock.ChatModel{Err: errors.New("503 from upstream")}},
		{"malformed output", mock.NewChatModel("I think you should use vector search")},
		{"missing route", mock.NewChatModel(`{"stocks_mentioned":["AAPL"],"date_range":"2024"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.TakeAll()
			got := NewLLMInterpreter(tt.model, time.Second, logger).Interpret(context.Background(), "q")
			assert.Equal(t, Default(), got)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestLLMInterpreter_Timeout(t *testing.T) {
	model := &mock.ChatModel{
		GenerateFunc: func(ctx context.Context, _ []llms.MessageContent) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	interp := NewLLMInterpreter(model, 20*time.Millisecond, nil)

	start := time.Now()
	got := interp.Interpret(context.Background(), "q")

	assert.Equal(t, Default(), got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLLMInterpreter_PanicUsesDefaults(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	model := &mock.ChatModel{
		GenerateFunc: func(context.Context, []llms.MessageContent) (string, error) {
			var m map[string]int
			m["route"]++
			return "", nil
		},
	}

	var got ParsedIntent
	assert.NotPanics(t, func() {
		got = NewLLMInterpreter(model, time.Second, zap.New(core)).Interpret(context.Background(), "q")
	})
	assert.Equal(t, Default(), got)
	assert.Equal(t, 1, logs.FilterMessageSnippet("panicked").Len())
}
