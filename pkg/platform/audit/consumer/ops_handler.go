package consumer

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
)

// Sampler decides which high-volume ops events to keep. Rates are per action
// with a default; 1.0 keeps everything, 0.0 drops everything.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
}

// NewSampler creates a sampler with the given default rate, clamped to
// [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(defaultRate),
		rateByAction: make(map[string]float64),
	}
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

// Keep reports whether an event with this action should be kept.
func (s *Sampler) Keep(action string) bool {
	s.mu.RLock()
	rate, ok := s.rateByAction[action]
	s.mu.RUnlock()
	if !ok {
		rate = s.defaultRate
	}
	return rand.Float64() < rate //nolint:gosec // sampling does not need crypto rand
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// OpsHandler archives a sampled subset of operations events. Evaluations and
// readiness runs dominate the stream; keeping a fraction is enough for
// operational visibility.
type OpsHandler struct {
	archive Archiver
	sampler *Sampler
	logger  *slog.Logger
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(archive Archiver, sampler *Sampler, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{archive: archive, sampler: sampler, logger: logger}
}

func (h *OpsHandler) Handle(ctx context.Context, msg Message) error {
	if !h.sampler.Keep(msg.Event.Action) {
		return nil
	}
	return h.archive.AppendWithID(ctx, msg.ID, msg.Event)
}
