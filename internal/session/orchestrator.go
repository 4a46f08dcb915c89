package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
)

// State is the per-session turn state.
type State int

const (
	StateIdle State = iota
	StateListeningTurn
	StateTurnFinalized
	StateToolPending
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListeningTurn:
		return "listening_turn"
	case StateTurnFinalized:
		return "turn_finalized"
	case StateToolPending:
		return "tool_pending"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

// Config bounds orchestrator behavior. Voice turns use relaxed search
// parameters compared to typed turns.
type Config struct {
	TypedTopK   int
	TypedMinSim float64
	VoiceTopK   int
	VoiceMinSim float64
	Patience    time.Duration
}

func (c *Config) applyDefaults() {
	if c.TypedTopK <= 0 {
		c.TypedTopK = 6
	}
	if c.TypedMinSim <= 0 {
		c.TypedMinSim = 0.6
	}
	if c.VoiceTopK <= 0 {
		c.VoiceTopK = 8
	}
	if c.VoiceMinSim <= 0 {
		c.VoiceMinSim = 0.35
	}
	if c.Patience <= 0 {
		c.Patience = 8 * time.Second
	}
}

// Orchestrator owns one conversational session. A single goroutine
// (Run) owns all state; inbound events and retrieval completions are
// serialized through channels, so no lock spans sessions or turns.
type Orchestrator struct {
	id        uuid.UUID
	retriever domain.Retriever
	responder Responder
	cfg       Config
	emit      func(Event)
	log       *logger.Logger

	inbound chan Event
	results chan retrievalOutcome
	done    chan struct{}

	state         State
	turnSeq       int
	turnUtterance string
}

type retrievalOutcome struct {
	seq       int
	callID    string
	utterance string
	result    domain.SearchResult
	err       error
}

// New creates a session orchestrator. emit delivers outbound events to
// the transport and must be safe for use from the Run goroutine.
func New(id uuid.UUID, retriever domain.Retriever, responder Responder, cfg Config, log *logger.Logger, emit func(Event)) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		id:        id,
		retriever: retriever,
		responder: responder,
		cfg:       cfg,
		emit:      emit,
		log:       log.With("service", "SessionOrchestrator", "session_id", id.String()),
		inbound:   make(chan Event, 16),
		results:   make(chan retrievalOutcome, 4),
		done:      make(chan struct{}),
	}
}

// Dispatch hands an inbound transport event to the session loop.
func (o *Orchestrator) Dispatch(ev Event) {
	select {
	case o.inbound <- ev:
	case <-o.done:
	}
}

// Run processes events until ctx is canceled (client disconnect). The
// session is transient; nothing survives Run returning.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.done)
	o.log.Debug("session started")
	for {
		select {
		case <-ctx.Done():
			o.log.Debug("session closed")
			return
		case ev := <-o.inbound:
			o.handle(ctx, ev)
		case out := <-o.results:
			o.finishRetrieval(ctx, out)
		}
	}
}

// handle dispatches over the closed event variant. Outbound-only kinds
// arriving from the transport are protocol errors.
func (o *Orchestrator) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTurnStart:
		o.setState(StateListeningTurn)

	case EventInterimTranscript:
		// Rendered live by the client; never triggers retrieval.
		o.log.Debug("interim transcript", "chars", len(ev.Transcript))

	case EventTurnFinalized:
		o.beginTurn(ctx, ev)

	case EventToolCallRequest:
		o.handleToolCall(ctx, ev)

	case EventToolCallResult, EventResponseTextDelta, EventResponseAudioDelta,
		EventResponseDone, EventState, EventError:
		o.emit(Event{Type: EventError, Message: fmt.Sprintf("unexpected inbound event %q", ev.Type)})

	default:
		o.emit(Event{Type: EventError, Message: fmt.Sprintf("unknown event type %q", ev.Type)})
	}
}

// beginTurn starts a new turn. A turn arriving while an earlier one is
// still in ToolPending/Responding supersedes it: the sequence number
// advances and any in-flight retrieval result is discarded on arrival.
func (o *Orchestrator) beginTurn(ctx context.Context, ev Event) {
	utterance := strings.TrimSpace(ev.Transcript)
	if utterance == "" {
		o.emit(Event{Type: EventError, Message: "finalized turn with empty transcript"})
		o.setState(StateIdle)
		return
	}
	o.turnSeq++
	o.turnUtterance = utterance
	o.setState(StateTurnFinalized)

	if isSmalltalk(utterance) {
		o.setState(StateResponding)
		o.respond(ctx, utterance, nil)
		return
	}

	k, minSim := o.searchParams(ev.IsVoice)
	o.setState(StateToolPending)
	o.launchRetrieval(ctx, o.turnSeq, "", utterance, k, minSim)
}

// handleToolCall answers an explicit search_manual request from the
// conversational model. The result is tagged with the call id and tied
// to the current turn, so a superseded call is dropped, not answered
// late. Explicitly supplied k/minSim always win; unset arguments fall
// back to the voice profile on voice calls, else the schema defaults.
func (o *Orchestrator) handleToolCall(ctx context.Context, ev Event) {
	if ev.ToolName != ToolSearchManual {
		o.emit(Event{Type: EventToolCallResult, CallID: ev.CallID, Output: fmt.Sprintf("ERROR: unsupported tool %q", ev.ToolName)})
		return
	}
	args, err := ParseSearchManualArgs(ev.ToolArgs)
	if err != nil || strings.TrimSpace(args.Query) == "" {
		o.emit(Event{Type: EventToolCallResult, CallID: ev.CallID, Output: "ERROR: search_manual requires a query"})
		return
	}
	k, minSim := args.K, args.MinSim
	if k <= 0 {
		k = DefaultToolK
		if args.IsVoice {
			k = o.cfg.VoiceTopK
		}
	}
	if minSim <= 0 {
		minSim = DefaultToolMinSim
		if args.IsVoice {
			minSim = o.cfg.VoiceMinSim
		}
	}
	o.setState(StateToolPending)
	o.launchRetrieval(ctx, o.turnSeq, ev.CallID, args.Query, k, minSim)
}

func (o *Orchestrator) launchRetrieval(ctx context.Context, seq int, callID, query string, k int, minSim float64) {
	go func() {
		cctx, cancel := context.WithTimeout(ctx, o.cfg.Patience)
		defer cancel()
		res, err := o.retriever.Search(cctx, query, k, minSim)
		if err != nil && cctx.Err() == context.DeadlineExceeded && !domain.IsTimeout(err) {
			err = &domain.TimeoutError{Op: "search_manual", Err: cctx.Err()}
		}
		select {
		case o.results <- retrievalOutcome{seq: seq, callID: callID, utterance: query, result: res, err: err}:
		case <-o.done:
		case <-ctx.Done():
		}
	}()
}

// finishRetrieval merges a retrieval completion back into the session.
// Results for superseded turns are discarded, never delivered out of
// order. Errors degrade to "no evidence" so the turn still resolves.
func (o *Orchestrator) finishRetrieval(ctx context.Context, out retrievalOutcome) {
	if out.seq != o.turnSeq {
		o.log.Debug("discarding superseded retrieval result", "seq", out.seq, "current", o.turnSeq)
		return
	}

	evidence := &out.result
	if out.err != nil {
		if domain.IsTimeout(out.err) {
			o.log.Warn("retrieval exceeded patience window", "query_chars", len(out.utterance))
		} else {
			o.log.Error("retrieval failed", "error", out.err)
		}
		evidence = nil
	}

	if out.callID != "" {
		// A backend failure must stay distinguishable from a
		// legitimately empty match set. Timeouts degrade to no evidence.
		output := "NO_EVIDENCE"
		switch {
		case out.err != nil && !domain.IsTimeout(out.err):
			output = "ERROR: retrieval unavailable"
		case evidence != nil && evidence.Context != "":
			output = evidence.Context
		}
		o.emit(Event{Type: EventToolCallResult, CallID: out.callID, Output: output})
		o.setState(StateIdle)
		return
	}

	o.setState(StateResponding)
	o.respond(ctx, out.utterance, evidence)
}

func (o *Orchestrator) respond(ctx context.Context, utterance string, evidence *domain.SearchResult) {
	err := o.responder.Respond(ctx, utterance, evidence, func(delta string) {
		o.emit(Event{Type: EventResponseTextDelta, Delta: delta})
	})
	if err != nil {
		o.emit(Event{Type: EventError, Message: "response generation failed"})
		o.log.Error("responder failed", "error", err)
	}
	o.emit(Event{Type: EventResponseDone})
	o.setState(StateIdle)
}

func (o *Orchestrator) searchParams(voice bool) (int, float64) {
	if voice {
		return o.cfg.VoiceTopK, o.cfg.VoiceMinSim
	}
	return o.cfg.TypedTopK, o.cfg.TypedMinSim
}

func (o *Orchestrator) setState(s State) {
	if o.state == s {
		return
	}
	o.state = s
	o.emit(Event{Type: EventState, State: s.String()})
}
