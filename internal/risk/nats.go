package risk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATS subjects served by the platform's risk and compliance services.
const (
	SubjectAssess  = "drawdash.risk.assess"
	SubjectProfile = "drawdash.compliance.profile"
)

// assessRequest is the wire form of a fraud assessment request.
type assessRequest struct {
	UserID   uuid.UUID          `json:"user_id"`
	Proposed ProposedWithdrawal `json:"proposed"`
	Context  CallContext        `json:"context,omitempty"`
}

type profileRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// NATSSignalProvider issues fraud assessments over NATS request-reply.
// The deadline on ctx bounds the round trip; the Gate supplies it.
type NATSSignalProvider struct {
	nc *nats.Conn
}

// NewNATSSignalProvider wraps an established NATS connection.
func NewNATSSignalProvider(nc *nats.Conn) *NATSSignalProvider {
	return &NATSSignalProvider{nc: nc}
}

// Assess implements SignalProvider.
func (p *NATSSignalProvider) Assess(ctx context.Context, userID uuid.UUID, proposed ProposedWithdrawal, meta CallContext) (Assessment, error) {
	payload, err := json.Marshal(assessRequest{UserID: userID, Proposed: proposed, Context: meta})
	if err != nil {
		return Assessment{}, fmt.Errorf("marshal assess request: %w", err)
	}

	msg, err := p.nc.RequestWithContext(ctx, SubjectAssess, payload)
	if err != nil {
		return Assessment{}, fmt.Errorf("risk assess request: %w", err)
	}

	var assessment Assessment
	if err := json.Unmarshal(msg.Data, &assessment); err != nil {
		return Assessment{}, fmt.Errorf("unmarshal assessment: %w", err)
	}
	if assessment.RiskScore < 0 || assessment.RiskScore > 100 {
		return Assessment{}, fmt.Errorf("assessment score out of range: %d", assessment.RiskScore)
	}
	return assessment, nil
}

// NATSProfileProvider fetches compliance profiles over NATS request-reply.
type NATSProfileProvider struct {
	nc *nats.Conn
}

// NewNATSProfileProvider wraps an established NATS connection.
func NewNATSProfileProvider(nc *nats.Conn) *NATSProfileProvider {
	return &NATSProfileProvider{nc: nc}
}

// GetProfile implements ProfileProvider.
func (p *NATSProfileProvider) GetProfile(ctx context.Context, userID uuid.UUID) (ComplianceProfile, error) {
	payload, err := json.Marshal(profileRequest{UserID: userID})
	if err != nil {
		return ComplianceProfile{}, fmt.Errorf("marshal profile request: %w", err)
	}

	msg, err := p.nc.RequestWithContext(ctx, SubjectProfile, payload)
	if err != nil {
		return ComplianceProfile{}, fmt.Errorf("compliance profile request: %w", err)
	}

	var profile ComplianceProfile
	if err := json.Unmarshal(msg.Data, &profile); err != nil {
		return ComplianceProfile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, nil
}
