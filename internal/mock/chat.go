// Package mock provides test doubles for the chat model and embedder.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ChatModel is a test double for llms.Model.
//
// By default every call answers with Response. Set GenerateFunc to script
// per-call behaviour. When the caller passes llms.WithStreamingFunc the
// answer is delivered word by word before being returned.
type ChatModel struct {
	Response     string
	Err          error
	GenerateFunc func(ctx context.Context, messages []llms.MessageContent) (string, error)

	mu    sync.Mutex
	calls [][]llms.MessageContent
}

// NewChatModel returns a ChatModel that always answers response.
func NewChatModel(response string) *ChatModel {
	return &ChatModel{Response: response}
}

// GenerateContent implements llms.Model.
func (m *ChatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	text, err := m.Response, m.Err
	if m.GenerateFunc != nil {
		text, err = m.GenerateFunc(ctx, messages)
	}
	if err != nil {
		return nil, err
	}

	if opts.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(text, " ") {
			if word == "" {
				continue
			}
			if err := opts.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text, StopReason: "stop"}},
	}, nil
}

// Call implements llms.Model.
func (m *ChatModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// CallCount returns the number of GenerateContent calls.
func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastSystem returns the system text of the most recent call.
func (m *ChatModel) LastSystem() string {
	return m.lastText(schema.ChatMessageTypeSystem)
}

// LastUser returns the human text of the most recent call.
func (m *ChatModel) LastUser() string {
	return m.lastText(schema.ChatMessageTypeHuman)
}

func (m *ChatModel) lastText(role schema.ChatMessageType) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	var b strings.Builder
	for _, msg := range m.calls[len(m.calls)-1] {
		if msg.Role != role {
			continue
		}
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				b.WriteString(tp.Text)
			}
		}
	}
	return b.String()
}

var _ llms.Model = (*ChatModel)(nil)
