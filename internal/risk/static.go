package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StaticSignalProvider returns a fixed assessment. Used in development mode
// and in tests; Delay and Err simulate slow or failing providers.
type StaticSignalProvider struct {
	Score int
	Block bool
	Flags []FraudFlag
	Err   error
	Delay time.Duration
}

// Assess implements SignalProvider.
func (p *StaticSignalProvider) Assess(ctx context.Context, userID uuid.UUID, proposed ProposedWithdrawal, meta CallContext) (Assessment, error) {
	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return Assessment{}, ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	if p.Err != nil {
		return Assessment{}, p.Err
	}
	return Assessment{RiskScore: p.Score, Flags: p.Flags, BlockRecommended: p.Block}, nil
}

// StaticProfileProvider returns a fixed compliance profile.
type StaticProfileProvider struct {
	Profile ComplianceProfile
	Err     error
	Delay   time.Duration
}

// GetProfile implements ProfileProvider.
func (p *StaticProfileProvider) GetProfile(ctx context.Context, userID uuid.UUID) (ComplianceProfile, error) {
	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return ComplianceProfile{}, ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	if p.Err != nil {
		return ComplianceProfile{}, p.Err
	}
	profile := p.Profile
	profile.UserID = userID
	return profile, nil
}
