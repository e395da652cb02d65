package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
)

// GateConfig bounds external provider calls.
type GateConfig struct {
	// Timeout is the per-attempt deadline.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first.
	Retries int
	// Backoff is the base delay between attempts; doubles per attempt.
	Backoff time.Duration
	// FallbackScore is the risk score assumed when the fraud provider
	// cannot be reached. Must sit above the auto-approval threshold.
	FallbackScore int
}

// DefaultGateConfig returns production defaults: one retry, short deadline,
// fallback score well inside the manual-review band.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Timeout:       2 * time.Second,
		Retries:       1,
		Backoff:       100 * time.Millisecond,
		FallbackScore: 75,
	}
}

// Gate wraps the external providers with timeouts, bounded retries, and a
// conservative fallback. A provider outage must never fail a withdrawal
// outright and must never relax scrutiny, so exhausted attempts yield a
// high-risk assessment together with ErrProviderTimeout.
type Gate struct {
	fraud    SignalProvider
	profiles ProfileProvider
	cfg      GateConfig
	log      zerolog.Logger
	metrics  *observability.Metrics
}

// NewGate wraps providers with retry and fallback policy. metrics may be nil.
func NewGate(fraud SignalProvider, profiles ProfileProvider, cfg GateConfig, log zerolog.Logger, metrics *observability.Metrics) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGateConfig().Timeout
	}
	if cfg.FallbackScore <= 0 {
		cfg.FallbackScore = DefaultGateConfig().FallbackScore
	}
	return &Gate{fraud: fraud, profiles: profiles, cfg: cfg, log: log, metrics: metrics}
}

// Assess calls the fraud provider. On timeout or provider error it returns
// the conservative fallback assessment and ErrProviderTimeout; the caller
// routes the request to manual review instead of failing it.
func (g *Gate) Assess(ctx context.Context, userID uuid.UUID, proposed ProposedWithdrawal, meta CallContext) (Assessment, error) {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, attempt); err != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		start := time.Now()
		assessment, err := g.fraud.Assess(callCtx, userID, proposed, meta)
		cancel()

		g.observe("fraud", start, err)
		if err == nil {
			return assessment, nil
		}
		lastErr = err
		g.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Int("attempt", attempt+1).
			Msg("fraud provider call failed")
	}

	g.countTimeout("fraud")
	g.log.Error().
		Err(lastErr).
		Str("user_id", userID.String()).
		Int("fallback_score", g.cfg.FallbackScore).
		Msg("fraud provider unavailable, assuming high risk")

	return Assessment{RiskScore: g.cfg.FallbackScore}, ledger.ErrProviderTimeout
}

// Profile calls the compliance provider. On failure it returns a zero
// profile and ErrProviderTimeout; the caller substitutes configured
// fallback limits and forces manual review.
func (g *Gate) Profile(ctx context.Context, userID uuid.UUID) (ComplianceProfile, error) {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, attempt); err != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		start := time.Now()
		profile, err := g.profiles.GetProfile(callCtx, userID)
		cancel()

		g.observe("compliance", start, err)
		if err == nil {
			return profile, nil
		}
		lastErr = err
		g.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Int("attempt", attempt+1).
			Msg("compliance provider call failed")
	}

	g.countTimeout("compliance")
	g.log.Error().
		Err(lastErr).
		Str("user_id", userID.String()).
		Msg("compliance provider unavailable, using fallback limits")

	return ComplianceProfile{UserID: userID}, ledger.ErrProviderTimeout
}

func (g *Gate) sleep(ctx context.Context, attempt int) error {
	delay := g.cfg.Backoff * time.Duration(1<<(attempt-1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (g *Gate) observe(provider string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	g.metrics.ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func (g *Gate) countTimeout(provider string) {
	if g.metrics == nil {
		return
	}
	g.metrics.ProviderTimeouts.WithLabelValues(provider).Inc()
}
