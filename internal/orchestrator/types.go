package orchestrator

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/intent"
)

// State is a step of the query state machine
type State string

const (
	// StateParsing extracts the intent
	StateParsing State = "parsing"

	// StateRouting chooses between vector search and the live lookup
	StateRouting State = "routing"

	// StateVectorSearch runs similarity search
	StateVectorSearch State = "vector_search"

	// StateGating checks whether the best candidate answers the query
	StateGating State = "gating"

	// StateRender turns the accepted record into text
	StateRender State = "render"

	// StateFallback asks the live fetcher
	StateFallback State = "fallback"

	// StateDone is terminal
	StateDone State = "done"
)

// Source attributes an answer.
type Source string

const (
	SourceStore Source = "store"
	SourceLive  Source = "live"
)

// AnswerResult is the outcome of one query. It is built once and not
// modified afterwards.
type AnswerResult struct {
	Message string `json:"message"`
	Source  Source `json:"source"`
	// Score is the cosine similarity of the rendered record; nil for live answers.
	Score       *float32            `json:"score,omitempty"`
	ParsedQuery intent.ParsedIntent `json:"parsed_query"`
}

// Transition reports one state change
type Transition struct {
	From   State         `json:"from"`
	To     State         `json:"to"`
	Reason string        `json:"reason,omitempty"`
	At     time.Duration `json:"at"`
}

// TransitionCallback receives transitions as they happen
type TransitionCallback func(Transition)

var (
	// ErrRetrievalFailed wraps embedding and store failures.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrMissingDependency is returned by New when a component is nil.
	ErrMissingDependency = errors.New("missing pipeline dependency")
)

// transition reasons
const (
	reasonBlankQuery    = "blank query"
	reasonLiveRoute     = "live route"
	reasonVectorRoute   = "vector route"
	reasonNoCandidates  = "no candidates"
	reasonBestCandidate = "best candidate selected"
	reasonInsufficient  = "gate rejected candidate"
	reasonSufficient    = "gate accepted candidate"
	reasonAnswered      = "answered"
)
