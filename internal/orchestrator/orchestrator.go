package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/gate"
	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/live"
	"github.com/fyrsmithlabs/finsight/internal/logging"
	"github.com/fyrsmithlabs/finsight/internal/render"
	"github.com/fyrsmithlabs/finsight/internal/retriever"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Deps are the pipeline components. All are required.
type Deps struct {
	Interpreter intent.Interpreter
	Searcher    retriever.Searcher
	Gate        gate.Gate
	Fetcher     live.Fetcher
	Renderer    render.Renderer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets the number of candidates requested from the store.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for the Answer span.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// OnTransition registers a callback for state changes.
func OnTransition(cb TransitionCallback) Option {
	return func(o *Orchestrator) {
		o.onTransition = cb
	}
}

// Orchestrator runs the query pipeline. It holds no per-query state and is
// safe for concurrent use.
type Orchestrator struct {
	deps         Deps
	topK         int
	logger       *logging.Logger
	tracer       trace.Tracer
	onTransition TransitionCallback
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Interpreter == nil:
		return nil, fmt.Errorf("%w: interpreter", ErrMissingDependency)
	case deps.Searcher == nil:
		return nil, fmt.Errorf("%w: searcher", ErrMissingDependency)
	case deps.Gate == nil:
		return nil, fmt.Errorf("%w: gate", ErrMissingDependency)
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("%w: fetcher", ErrMissingDependency)
	case deps.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", ErrMissingDependency)
	}

	o := &Orchestrator{
		deps:   deps,
		topK:   retriever.DefaultTopK,
		logger: logging.NewNop(),
		tracer: otel.Tracer("finsight.orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run tracks one query through the state machine.
type run struct {
	o          *Orchestrator
	state      State
	start      time.Time
	stageStart time.Time
}

func (r *run) moveTo(ctx context.Context, next State, reason string) {
	now := time.Now()
	StageDuration.WithLabelValues(string(r.state)).Observe(now.Sub(r.stageStart).Seconds())

	t := Transition{From: r.state, To: next, Reason: reason, At: now.Sub(r.start)}
	r.o.logger.Debug(ctx, "pipeline transition",
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("reason", reason),
	)
	trace.SpanFromContext(ctx).AddEvent(string(next), trace.WithAttributes(attribute.String("reason", reason)))
	if r.o.onTransition != nil {
		r.o.onTransition(t)
	}

	r.state = next
	r.stageStart = now
}

// Answer runs query through the pipeline. Retrieval failures are the only
// error path; every other failure degrades to a live or locally rendered
// answer. Blank input skips interpretation and search and goes straight to
// the live lookup with the default intent.
func (o *Orchestrator) Answer(ctx context.Context, query string) (_ *AnswerResult, err error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Answer")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	now := time.Now()
	r := &run{o: o, state: StateParsing, start: now, stageStart: now}

	if strings.TrimSpace(query) == "" {
		parsed := intent.Default()
		r.moveTo(ctx, StateRouting, reasonBlankQuery)
		r.moveTo(ctx, StateFallback, reasonBlankQuery)
		return o.fallback(ctx, r, span, query, parsed), nil
	}

	parsed := o.deps.Interpreter.Interpret(ctx, query)
	span.SetAttributes(
		attribute.String("route", string(parsed.Route)),
		attribute.Int("entities", len(parsed.Entities)),
		attribute.Bool("dated", parsed.HasDate()),
	)
	r.moveTo(ctx, StateRouting, "parsed")
	RoutesTotal.WithLabelValues(string(parsed.Route)).Inc()

	if parsed.Route == intent.RouteLive {
		r.moveTo(ctx, StateFallback, reasonLiveRoute)
		return o.fallback(ctx, r, span, query, parsed), nil
	}

	r.moveTo(ctx, StateVectorSearch, reasonVectorRoute)
	candidates, err := o.deps.Searcher.Search(ctx, query, parsed.DateConstraint, o.topK)
	if err != nil {
		FailuresTotal.Inc()
		o.logger.Error(ctx, "retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	best, ok := retriever.Best(candidates)
	if !ok {
		r.moveTo(ctx, StateFallback, reasonNoCandidates)
		return o.fallback(ctx, r, span, query, parsed), nil
	}

	r.moveTo(ctx, StateGating, reasonBestCandidate)
	if !o.deps.Gate.IsSufficient(ctx, query, best.Record) {
		GateVerdictsTotal.WithLabelValues("insufficient").Inc()
		r.moveTo(ctx, StateFallback, reasonInsufficient)
		return o.fallback(ctx, r, span, query, parsed), nil
	}
	GateVerdictsTotal.WithLabelValues("sufficient").Inc()

	r.moveTo(ctx, StateRender, reasonSufficient)
	message, err := o.deps.Renderer.Render(ctx, best.Record)
	if err != nil {
		o.logger.Warn(ctx, "rendering failed, using plain answer",
			zap.Error(err),
			zap.String("symbol", best.Record.Symbol),
		)
		message = render.Plain(best.Record)
	}

	score := best.Score
	return o.finish(ctx, r, span, &AnswerResult{
		Message:     message,
		Source:      SourceStore,
		Score:       &score,
		ParsedQuery: parsed,
	}), nil
}

func (o *Orchestrator) fallback(ctx context.Context, r *run, span trace.Span, query string, parsed intent.ParsedIntent) *AnswerResult {
	message := o.deps.Fetcher.FetchLive(ctx, query)
	return o.finish(ctx, r, span, &AnswerResult{
		Message:     message,
		Source:      SourceLive,
		ParsedQuery: parsed,
	})
}

func (o *Orchestrator) finish(ctx context.Context, r *run, span trace.Span, result *AnswerResult) *AnswerResult {
	r.moveTo(ctx, StateDone, reasonAnswered)
	AnswersTotal.WithLabelValues(string(result.Source)).Inc()

	span.SetAttributes(attribute.String("source", string(result.Source)))
	fields := []zap.Field{
		zap.String("source", string(result.Source)),
		zap.Duration("duration", time.Since(r.start)),
	}
	if result.Score != nil {
		fields = append(fields, zap.Float32("score", *result.Score))
	}
	o.logger.Info(ctx, "query answered", fields...)
	return result
}
