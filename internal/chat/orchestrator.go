package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"a2achat/internal/metrics"
	"a2achat/internal/providers"
	"a2achat/internal/storage"
)

// Orchestrator runs one AI speaking turn end to end: eligibility checks,
// prompt assembly, a single timed provider call, and persistence of the
// result. Each TakeTurn call is an independent unit of work; the only shared
// state is the injected store.
type Orchestrator struct {
	store   Store
	invoker providers.Invoker
	prompts *PromptBuilder
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type Config struct {
	Store   Store
	Invoker providers.Invoker
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func NewOrchestrator(cfg Config) *Orchestrator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Orchestrator{
		store:   cfg.Store,
		invoker: cfg.Invoker,
		prompts: NewPromptBuilder(cfg.Store),
		logger:  cfg.Logger,
		metrics: m,
	}
}

type TurnRequest struct {
	GroupID       int64
	ParticipantID int64
	Instruction   string
	APIKey        string
}

type TurnResult struct {
	MessageID      int64
	Content        string
	ResponseTimeMs int64
	SpeakerName    string
}

// TakeTurn makes one AI participant speak once. On provider failure nothing
// is persisted, so conversation replay never shows a failed turn as a real
// utterance. No retries happen here; a caller retrying re-reads history
// fresh.
func (o *Orchestrator) TakeTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	o.metrics.TurnsStarted.Inc()

	p, err := o.store.GetParticipant(ctx, req.ParticipantID)
	if err != nil {
		o.metrics.TurnsFailed.Inc()
		if errors.Is(err, storage.ErrNotFound) {
			return TurnResult{}, fmt.Errorf("participant %d: %w", req.ParticipantID, ErrParticipantNotFound)
		}
		return TurnResult{}, fmt.Errorf("load participant %d: %w", req.ParticipantID, err)
	}
	if p.GroupID != req.GroupID {
		// No cross-group authorship: a participant from another group is
		// indistinguishable from an absent one.
		o.metrics.TurnsFailed.Inc()
		return TurnResult{}, fmt.Errorf("participant %d in group %d: %w", req.ParticipantID, req.GroupID, ErrParticipantNotFound)
	}
	if p.Kind != storage.KindAI {
		o.metrics.TurnsFailed.Inc()
		return TurnResult{}, fmt.Errorf("participant %q: %w", p.Name, ErrNotAIParticipant)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		o.metrics.TurnsFailed.Inc()
		return TurnResult{}, fmt.Errorf("participant %q (provider %s): %w", p.Name, p.Provider, providers.ErrMissingAPIKey)
	}

	prompt, err := o.prompts.Build(ctx, req.GroupID, p, req.Instruction)
	if err != nil {
		o.metrics.TurnsFailed.Inc()
		return TurnResult{}, fmt.Errorf("build prompt for %q: %w", p.Name, err)
	}

	start := time.Now()
	resp, invokeErr := o.invoker.Invoke(ctx, providers.Request{
		Provider: providers.Kind(p.Provider),
		Model:    p.Model,
		APIKey:   req.APIKey,
		Prompt:   prompt,
	})
	elapsed := time.Since(start)
	elapsedMs := elapsed.Milliseconds()
	o.metrics.ProviderLatency.WithLabelValues(p.Provider).Observe(elapsed.Seconds())

	if invokeErr != nil {
		o.metrics.TurnsFailed.Inc()
		o.logger.Error().
			Err(invokeErr).
			Int64("group_id", req.GroupID).
			Int64("participant_id", p.ID).
			Str("provider", p.Provider).
			Int64("elapsed_ms", elapsedMs).
			Msg("provider call failed")
		return TurnResult{}, fmt.Errorf("turn for %q (group %d, provider %s): %w", p.Name, req.GroupID, p.Provider, invokeErr)
	}

	messageID, err := o.store.InsertMessage(ctx, storage.NewMessage{
		GroupID:        req.GroupID,
		ParticipantID:  p.ID,
		Content:        resp.Text,
		ResponseTimeMs: &elapsedMs,
	})
	if err != nil {
		o.metrics.TurnsFailed.Inc()
		return TurnResult{}, fmt.Errorf("persist turn for %q (group %d): %w", p.Name, req.GroupID, err)
	}

	o.metrics.TurnsSucceeded.Inc()
	o.metrics.MessagesInserted.Inc()
	o.logger.Info().
		Int64("group_id", req.GroupID).
		Int64("participant_id", p.ID).
		Int64("message_id", messageID).
		Str("provider", p.Provider).
		Int64("elapsed_ms", elapsedMs).
		Msg("turn completed")

	return TurnResult{
		MessageID:      messageID,
		Content:        resp.Text,
		ResponseTimeMs: elapsedMs,
		SpeakerName:    p.Name,
	}, nil
}
