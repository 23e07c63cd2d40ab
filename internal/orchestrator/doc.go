// Package orchestrator answers a financial question by sequencing the query
// pipeline and attributing the answer to its source.
//
// # Overview
//
// Every query runs through a small state machine:
//
//	PARSING → ROUTING → VECTOR_SEARCH → GATING → RENDER → DONE
//	                 ↘               ↘         ↘
//	                  FALLBACK ──────────────────→ DONE
//
// The interpreter decides the route. A live route goes straight to the
// fallback fetcher and the retriever is never called. A vector route
// searches the store, picks the highest scoring candidate and asks the gate
// whether it answers the question. Only a "yes" leads to RENDER, in which
// case the result is attributed to the store and carries the match score.
// Everything else ends in FALLBACK and is attributed to the live lookup.
// Blank input skips parsing and search and falls back with the default
// intent.
//
// # Failure Semantics
//
// Only retrieval failures (embedding or store errors) fail a request; they
// are returned wrapped in ErrRetrievalFailed. The interpreter, gate and
// fetcher degrade on their own, and a renderer error is replaced by a local
// labelled rendering of the record. No step is retried.
//
// # Key Components
//
//   - Orchestrator: owns the control flow, emits a Transition for every
//     state change and records stage metrics.
//   - AnswerResult: the immutable outcome, serialized as
//     {message, source, score?, parsed_query}.
//
// # Usage Example
//
//	o, err := orchestrator.New(orchestrator.Deps{
//	    Interpreter: intent.NewLLMInterpreter(chat, cfg.Pipeline.InterpretTimeout, zl),
//	    Searcher:    ret,
//	    Gate:        gate.NewLLMGate(chat, cfg.Pipeline.GateTimeout, zl),
//	    Fetcher:     live.NewFetcher(backend, cfg.Pipeline.FallbackTimeout, zl),
//	    Renderer:    render.NewLLMRenderer(chat, cfg.Pipeline.RenderTimeout, zl),
//	}, orchestrator.WithLogger(logger))
//
//	result, err := o.Answer(ctx, "What is Apple's PE ratio?")
package orchestrator
