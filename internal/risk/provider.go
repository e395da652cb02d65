// Package risk holds the fraud-signal and compliance-profile boundaries.
// The workflow engine consumes these as capabilities ({Assess}, {GetProfile});
// the platform's rule-authoring internals live elsewhere.
package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/money"
)

// Severity of a fraud flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore maps a 0..100 risk score to a flag severity.
func SeverityForScore(score int) Severity {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FraudFlag is an open finding against a user. Immutable after creation
// except for resolution.
type FraudFlag struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`
	Severity   Severity  `json:"severity"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
	Resolved   bool      `json:"resolved"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
}

// ProposedWithdrawal describes the transaction under assessment. The
// provider sees the intent before any funds are reserved.
type ProposedWithdrawal struct {
	UserID      uuid.UUID    `json:"user_id"`
	Amount      money.Amount `json:"amount"`
	MethodID    uuid.UUID    `json:"method_id"`
	MethodType  string       `json:"method_type"`
	RequestedAt time.Time    `json:"requested_at"`
}

// CallContext carries opaque request context (IP, device fingerprint, ...)
// forwarded to the signal provider.
type CallContext map[string]string

// Assessment is the fraud provider's verdict. Scores run 0..100.
type Assessment struct {
	RiskScore        int         `json:"risk_score"`
	Flags            []FraudFlag `json:"flags"`
	BlockRecommended bool        `json:"block_recommended"`
}

// SignalProvider assesses a proposed transaction. Implementations must not
// mutate balances; flags they raise are persisted by the caller.
type SignalProvider interface {
	Assess(ctx context.Context, userID uuid.UUID, proposed ProposedWithdrawal, meta CallContext) (Assessment, error)
}

// Restrictions are the withdrawal limits attached to a compliance profile.
// Amounts in øre; zero means "no limit configured" and falls back to the
// engine's conservative defaults.
type Restrictions struct {
	MinWithdrawal        money.Amount `json:"min_withdrawal"`
	MaxPerTransaction    money.Amount `json:"max_per_transaction"`
	MaxDailyWithdrawal   money.Amount `json:"max_daily_withdrawal"`
	MaxMonthlyWithdrawal money.Amount `json:"max_monthly_withdrawal"`
	RequiresManualReview bool         `json:"requires_manual_review"`
}

// ComplianceProfile is the KYC/AML view of a user.
type ComplianceProfile struct {
	UserID       uuid.UUID    `json:"user_id"`
	KYCLevel     string       `json:"kyc_level"`
	AMLStatus    string       `json:"aml_status"`
	RiskTier     string       `json:"risk_tier"`
	Restrictions Restrictions `json:"restrictions"`
}

// ProfileProvider returns the compliance profile for a user.
type ProfileProvider interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (ComplianceProfile, error)
}
