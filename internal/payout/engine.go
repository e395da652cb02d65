package payout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
)

// Config carries the engine's policy knobs. Amounts in øre. The Max*/Min*
// fields are fallback limits, used when a compliance profile omits a limit
// or the compliance provider is unreachable.
type Config struct {
	FeeRateBps int64
	FeeMin     money.Amount
	FeeMax     money.Amount

	MinWithdrawal     money.Amount
	MaxPerTransaction money.Amount
	MaxDaily          money.Amount
	MaxMonthly        money.Amount

	// AutoApproveBelow: requests scoring strictly below this, with no manual
	// review markers, skip the operator queue.
	AutoApproveBelow int
	// ManualReviewAt: scores at or above this always require an operator.
	ManualReviewAt int
}

// DefaultConfig returns production policy: 2% fee clamped to [5, 50] DKK,
// conservative fallback limits.
func DefaultConfig() Config {
	return Config{
		FeeRateBps:        200,
		FeeMin:            500,
		FeeMax:            5_000,
		MinWithdrawal:     5_000,
		MaxPerTransaction: 5_000_000,
		MaxDaily:          5_000_000,
		MaxMonthly:        20_000_000,
		AutoApproveBelow:  30,
		ManualReviewAt:    70,
	}
}

// Event is what the engine emits for every mutation of its books: exactly
// one field is non-nil.
type Event struct {
	Request *Request
	Flag    *risk.FraudFlag
	Method  *Method
}

// providerGate is the slice of risk.Gate the engine needs.
type providerGate interface {
	Assess(ctx context.Context, userID uuid.UUID, proposed risk.ProposedWithdrawal, meta risk.CallContext) (risk.Assessment, error)
	Profile(ctx context.Context, userID uuid.UUID) (risk.ComplianceProfile, error)
}

// Engine owns the payout request book and drives the withdrawal workflow.
// The request book follows the same write-behind model as the ledger store:
// in-memory authoritative, persisted via a blocking channel send.
type Engine struct {
	store   *ledger.Store
	gate    providerGate
	methods *MethodRegistry
	flags   *risk.FlagRegistry

	mu       sync.Mutex
	requests map[uuid.UUID]*Request
	byUser   map[uuid.UUID][]uuid.UUID
	byKey    map[string]uuid.UUID

	cfg         Config
	persistChan chan<- Event
	publishChan chan<- Event
	log         zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// EngineConfig wires the engine's collaborators. Persist may be nil in tests.
type EngineConfig struct {
	Store   *ledger.Store
	Gate    providerGate
	Methods *MethodRegistry
	Flags   *risk.FlagRegistry
	Policy  Config
	Persist chan<- Event
	Publish chan<- Event
	Logger  zerolog.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Methods == nil {
		cfg.Methods = NewMethodRegistry()
	}
	if cfg.Flags == nil {
		cfg.Flags = risk.NewFlagRegistry()
	}
	return &Engine{
		store:       cfg.Store,
		gate:        cfg.Gate,
		methods:     cfg.Methods,
		flags:       cfg.Flags,
		requests:    make(map[uuid.UUID]*Request),
		byUser:      make(map[uuid.UUID][]uuid.UUID),
		byKey:       make(map[string]uuid.UUID),
		cfg:         cfg.Policy,
		persistChan: cfg.Persist,
		publishChan: cfg.Publish,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
}

// SubmitParams carries one withdrawal submission.
type SubmitParams struct {
	UserID         uuid.UUID
	Amount         money.Amount
	MethodID       uuid.UUID
	IdempotencyKey string
	Context        risk.CallContext
}

// SubmitWithdrawal runs the full intake pipeline: validation, idempotency,
// compliance limits, balance check, fraud assessment, fee computation,
// reservation, and finally auto-approval for low-risk requests.
//
// Provider outages never fail the submission: a fraud or compliance timeout
// routes the request to manual review under conservative assumptions.
func (e *Engine) SubmitWithdrawal(ctx context.Context, p SubmitParams) (*Request, error) {
	if p.Amount <= 0 {
		e.countSubmit("invalid_amount")
		return nil, fmt.Errorf("withdrawal of %d: %w", p.Amount, ledger.ErrInvalidAmount)
	}

	method, ok := e.methods.Get(p.MethodID)
	if !ok || method.UserID != p.UserID {
		e.countSubmit("unknown_method")
		return nil, fmt.Errorf("payout method %s: %w", p.MethodID, ledger.ErrMethodNotVerified)
	}
	if !method.Verified {
		e.countSubmit("unverified_method")
		return nil, fmt.Errorf("payout method %s is not verified: %w", p.MethodID, ledger.ErrMethodNotVerified)
	}

	existing, claimed, err := e.claimKey(p)
	if err != nil {
		e.countSubmit("duplicate")
		return nil, err
	}
	if existing != nil {
		e.countSubmit("replayed")
		return existing, nil
	}
	// The key is claimed; every failure below must release it.
	fail := func(result string, err error) (*Request, error) {
		if claimed {
			e.releaseKey(p)
		}
		e.countSubmit(result)
		return nil, err
	}

	profile, profileErr := e.gate.Profile(ctx, p.UserID)
	if profileErr != nil && !errors.Is(profileErr, ledger.ErrProviderTimeout) {
		return fail("profile_error", profileErr)
	}
	limits := e.effectiveLimits(profile.Restrictions)
	manual := profile.Restrictions.RequiresManualReview || profileErr != nil

	if p.Amount < limits.MinWithdrawal {
		return fail("below_minimum", fmt.Errorf("withdrawal %s below minimum %s: %w",
			p.Amount, limits.MinWithdrawal, ledger.ErrLimitExceeded))
	}
	if p.Amount > limits.MaxPerTransaction {
		return fail("over_per_tx", fmt.Errorf("withdrawal %s exceeds per-transaction limit %s: %w",
			p.Amount, limits.MaxPerTransaction, ledger.ErrLimitExceeded))
	}

	// Funds check before the fraud call: a submission the balance cannot
	// cover must not spend provider quota or raise flags. Reserve, under
	// the account lock, remains the authority.
	if e.store.GetBalance(p.UserID).Available() < p.Amount {
		return fail("insufficient", fmt.Errorf("withdrawal %s exceeds available cash: %w",
			p.Amount, ledger.ErrInsufficientFunds))
	}

	proposed := risk.ProposedWithdrawal{
		UserID:      p.UserID,
		Amount:      p.Amount,
		MethodID:    method.ID,
		MethodType:  string(method.Type),
		RequestedAt: e.now(),
	}
	assessment, assessErr := e.gate.Assess(ctx, p.UserID, proposed, p.Context)
	if assessErr != nil && !errors.Is(assessErr, ledger.ErrProviderTimeout) {
		return fail("assess_error", assessErr)
	}
	manual = manual || assessErr != nil ||
		assessment.BlockRecommended ||
		assessment.RiskScore >= e.cfg.ManualReviewAt

	e.raiseFlags(p.UserID, assessment)

	fee := money.ClampFee(p.Amount, e.cfg.FeeRateBps, e.cfg.FeeMin, e.cfg.FeeMax)

	e.mu.Lock()
	day, month := e.windowTotalsLocked(p.UserID)
	if day+p.Amount > limits.MaxDailyWithdrawal {
		e.mu.Unlock()
		return fail("over_daily", fmt.Errorf("daily withdrawals %s + %s exceed limit %s: %w",
			day, p.Amount, limits.MaxDailyWithdrawal, ledger.ErrLimitExceeded))
	}
	if month+p.Amount > limits.MaxMonthlyWithdrawal {
		e.mu.Unlock()
		return fail("over_monthly", fmt.Errorf("monthly withdrawals %s + %s exceed limit %s: %w",
			month, p.Amount, limits.MaxMonthlyWithdrawal, ledger.ErrLimitExceeded))
	}

	resID, err := e.store.Reserve(p.UserID, p.Amount)
	if err != nil {
		e.mu.Unlock()
		return fail("insufficient", err)
	}

	req := &Request{
		ID:             uuid.New(),
		UserID:         p.UserID,
		MethodID:       method.ID,
		Amount:         p.Amount,
		Fee:            fee,
		Net:            p.Amount - fee,
		Status:         StatusPending,
		RiskScore:      assessment.RiskScore,
		KYCStatus:      profile.KYCLevel,
		ManualReview:   manual,
		IdempotencyKey: p.IdempotencyKey,
		ReservationID:  resID,
		RequestedAt:    e.now(),
	}
	e.insertLocked(req)
	if p.IdempotencyKey != "" {
		e.byKey[keyFor(p)] = req.ID
	}
	submitted := *req
	e.mu.Unlock()

	e.countSubmit("ok")
	e.emitRequest(&submitted)
	e.log.Info().
		Str("request_id", req.ID.String()).
		Str("user_id", p.UserID.String()).
		Str("amount", req.Amount.String()).
		Str("fee", req.Fee.String()).
		Int("risk_score", req.RiskScore).
		Bool("manual_review", manual).
		Msg("withdrawal submitted")

	if !manual && assessment.RiskScore < e.cfg.AutoApproveBelow {
		e.mu.Lock()
		if err := e.transitionLocked(req, StatusApproved, "auto", "auto-approved: low risk"); err == nil {
			if e.metrics != nil {
				e.metrics.PayoutAutoApproved.Inc()
			}
		}
		cp := *req
		e.mu.Unlock()
		e.emitRequest(&cp)
	}

	return e.snapshot(req.ID), nil
}

// ProcessRequest is the operator action on a pending or approved request.
// Action is "approve" or "reject". Approval drives the request through
// processing and settlement; a settlement failure leaves it in processing
// and is reported as an error. A later approve on a processing request
// skips the transitions and resumes at settlement.
func (e *Engine) ProcessRequest(ctx context.Context, requestID uuid.UUID, action, adminID, notes string) (*Request, error) {
	switch action {
	case "approve":
		return e.approve(requestID, adminID, notes)
	case "reject":
		return e.reject(requestID, adminID, notes)
	default:
		return nil, fmt.Errorf("unknown action %q: %w", action, ledger.ErrInvalidStateTransition)
	}
}

func (e *Engine) approve(requestID uuid.UUID, adminID, notes string) (*Request, error) {
	e.mu.Lock()
	req, ok := e.requests[requestID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("payout request %s: %w", requestID, ledger.ErrInvalidStateTransition)
	}

	// A request already in processing is a settlement retry: an earlier
	// attempt failed after the transition, or a restart reloaded it mid
	// flight. Skip the transitions and go straight back to settlement.
	if req.Status != StatusProcessing {
		if req.Status == StatusPending {
			if err := e.transitionLocked(req, StatusApproved, adminID, notes); err != nil {
				e.mu.Unlock()
				return nil, err
			}
		}
		if err := e.transitionLocked(req, StatusProcessing, adminID, notes); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	cp := *req
	e.mu.Unlock()
	e.emitRequest(&cp)

	reqID := req.ID
	md := ledger.Metadata{PayoutRequestID: &reqID, AdminID: adminID}
	if _, err := e.store.Settle(req.UserID, req.ReservationID, md); err != nil {
		if e.metrics != nil {
			e.metrics.PayoutSettleFailed.Inc()
		}
		e.log.Error().
			Err(err).
			Str("request_id", requestID.String()).
			Msg("settlement failed, request held in processing")
		return e.snapshot(requestID), fmt.Errorf("settle request %s: %w", requestID, err)
	}

	e.mu.Lock()
	if err := e.transitionLocked(req, StatusCompleted, adminID, notes); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	cp = *req
	e.mu.Unlock()
	e.emitRequest(&cp)

	e.log.Info().
		Str("request_id", requestID.String()).
		Str("net", req.Net.String()).
		Str("admin_id", adminID).
		Msg("payout completed")
	return &cp, nil
}

func (e *Engine) reject(requestID uuid.UUID, adminID, notes string) (*Request, error) {
	e.mu.Lock()
	req, ok := e.requests[requestID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("payout request %s: %w", requestID, ledger.ErrInvalidStateTransition)
	}
	if err := e.transitionLocked(req, StatusRejected, adminID, notes); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	cp := *req
	e.mu.Unlock()

	if err := e.store.Release(req.UserID, req.ReservationID); err != nil {
		// The reservation is consumed only by settlement; a missing one here
		// means the books diverged.
		e.log.Error().
			Err(err).
			Str("request_id", requestID.String()).
			Msg("release after rejection failed")
	}

	e.emitRequest(&cp)
	e.log.Info().
		Str("request_id", requestID.String()).
		Str("admin_id", adminID).
		Msg("payout rejected")
	return &cp, nil
}

// Cancel lets the owner withdraw a request that no operator has touched yet.
func (e *Engine) Cancel(userID, requestID uuid.UUID) (*Request, error) {
	e.mu.Lock()
	req, ok := e.requests[requestID]
	if !ok || req.UserID != userID {
		e.mu.Unlock()
		return nil, fmt.Errorf("payout request %s: %w", requestID, ledger.ErrInvalidStateTransition)
	}
	if req.Status != StatusPending {
		e.mu.Unlock()
		return nil, fmt.Errorf("cancel %s request: %w", req.Status, ledger.ErrInvalidStateTransition)
	}
	if err := e.transitionLocked(req, StatusRejected, "user", "user cancelled"); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	cp := *req
	e.mu.Unlock()

	if err := e.store.Release(userID, req.ReservationID); err != nil {
		e.log.Error().Err(err).Str("request_id", requestID.String()).Msg("release after cancel failed")
	}
	e.emitRequest(&cp)
	return &cp, nil
}

// GetRequest returns a copy of a request.
func (e *Engine) GetRequest(id uuid.UUID) (*Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return nil, false
	}
	cp := *req
	return &cp, true
}

// GetPending returns the operator queue: pending and approved requests,
// oldest first. userID narrows to one user when non-nil.
func (e *Engine) GetPending(userID *uuid.UUID) []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Request, 0)
	for _, req := range e.requests {
		if req.Status != StatusPending && req.Status != StatusApproved {
			continue
		}
		if userID != nil && req.UserID != *userID {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// ListByUser returns all of a user's requests, newest first.
func (e *Engine) ListByUser(userID uuid.UUID) []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.byUser[userID]
	out := make([]Request, 0, len(ids))
	for _, id := range ids {
		out = append(out, *e.requests[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

// Limits is the user-facing view of withdrawal headroom.
type Limits struct {
	MinWithdrawal        money.Amount `json:"min_withdrawal"`
	MaxPerTransaction    money.Amount `json:"max_per_transaction"`
	MaxDaily             money.Amount `json:"max_daily"`
	MaxMonthly           money.Amount `json:"max_monthly"`
	UsedToday            money.Amount `json:"used_today"`
	UsedThisMonth        money.Amount `json:"used_this_month"`
	RemainingToday       money.Amount `json:"remaining_today"`
	RemainingThisMonth   money.Amount `json:"remaining_this_month"`
	RequiresManualReview bool         `json:"requires_manual_review"`
}

// GetLimits resolves the user's effective limits and current usage. A
// compliance outage yields the fallback limits with manual review forced.
func (e *Engine) GetLimits(ctx context.Context, userID uuid.UUID) (Limits, error) {
	profile, err := e.gate.Profile(ctx, userID)
	if err != nil && !errors.Is(err, ledger.ErrProviderTimeout) {
		return Limits{}, err
	}
	limits := e.effectiveLimits(profile.Restrictions)

	e.mu.Lock()
	day, month := e.windowTotalsLocked(userID)
	e.mu.Unlock()

	remDay := limits.MaxDailyWithdrawal - day
	if remDay < 0 {
		remDay = 0
	}
	remMonth := limits.MaxMonthlyWithdrawal - month
	if remMonth < 0 {
		remMonth = 0
	}
	return Limits{
		MinWithdrawal:        limits.MinWithdrawal,
		MaxPerTransaction:    limits.MaxPerTransaction,
		MaxDaily:             limits.MaxDailyWithdrawal,
		MaxMonthly:           limits.MaxMonthlyWithdrawal,
		UsedToday:            day,
		UsedThisMonth:        month,
		RemainingToday:       remDay,
		RemainingThisMonth:   remMonth,
		RequiresManualReview: limits.RequiresManualReview || err != nil,
	}, nil
}

// AddMethod registers a payout method and emits it for persistence.
func (e *Engine) AddMethod(m Method) (Method, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = e.now()
	stored, err := e.methods.Add(m)
	if err != nil {
		return Method{}, err
	}
	e.emit(Event{Method: &stored})
	return stored, nil
}

// VerifyMethod marks a method verified and emits the update.
func (e *Engine) VerifyMethod(id uuid.UUID) (Method, error) {
	m, err := e.methods.Verify(id)
	if err != nil {
		return Method{}, err
	}
	e.emit(Event{Method: &m})
	return m, nil
}

// Methods returns a user's payout methods.
func (e *Engine) Methods(userID uuid.UUID) []Method {
	return e.methods.ListByUser(userID)
}

// Flags returns a user's fraud flags.
func (e *Engine) Flags(userID uuid.UUID, includeResolved bool) []risk.FraudFlag {
	return e.flags.ListByUser(userID, includeResolved)
}

// ResolveFlag closes a fraud flag and emits the update.
func (e *Engine) ResolveFlag(flagID uuid.UUID, adminID string) (risk.FraudFlag, error) {
	flag, err := e.flags.Resolve(flagID, adminID)
	if err != nil {
		return risk.FraudFlag{}, err
	}
	e.emit(Event{Flag: &flag})
	return flag, nil
}

// --- Rebuild (startup replay) ---

// RestoreRequest loads a persisted request during rebuild. Live requests
// re-lock their reservation in the ledger.
func (e *Engine) RestoreRequest(req Request) error {
	e.mu.Lock()
	cp := req
	e.insertLocked(&cp)
	if req.IdempotencyKey != "" {
		e.byKey[req.UserID.String()+"/"+req.IdempotencyKey] = req.ID
	}
	e.mu.Unlock()

	if cp.Live() {
		if err := e.store.RestoreReservation(req.UserID, req.ReservationID, req.Amount); err != nil {
			return fmt.Errorf("restore request %s: %w", req.ID, err)
		}
	}
	return nil
}

// RestoreMethod loads a persisted method during rebuild.
func (e *Engine) RestoreMethod(m Method) {
	e.methods.Restore(m)
}

// RestoreFlag loads a persisted flag during rebuild.
func (e *Engine) RestoreFlag(flag risk.FraudFlag) {
	e.flags.Restore(flag)
}

// --- internals ---

func keyFor(p SubmitParams) string {
	return p.UserID.String() + "/" + p.IdempotencyKey
}

// claimKey implements idempotent submission. Returns the existing request
// when the same key carries identical parameters; ErrDuplicateRequest when
// the key is reused with different parameters; otherwise claims the key.
func (e *Engine) claimKey(p SubmitParams) (*Request, bool, error) {
	if p.IdempotencyKey == "" {
		return nil, false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.byKey[keyFor(p)]
	if !ok {
		// uuid.Nil marks an in-flight claim.
		e.byKey[keyFor(p)] = uuid.Nil
		return nil, true, nil
	}
	if id == uuid.Nil {
		return nil, false, fmt.Errorf("submission with key %q in flight: %w", p.IdempotencyKey, ledger.ErrDuplicateRequest)
	}
	req := e.requests[id]
	if req.Amount == p.Amount && req.MethodID == p.MethodID {
		cp := *req
		return &cp, false, nil
	}
	return nil, false, fmt.Errorf("key %q reused with different parameters: %w", p.IdempotencyKey, ledger.ErrDuplicateRequest)
}

func (e *Engine) releaseKey(p SubmitParams) {
	if p.IdempotencyKey == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.byKey[keyFor(p)] == uuid.Nil {
		delete(e.byKey, keyFor(p))
	}
}

func (e *Engine) insertLocked(req *Request) {
	e.requests[req.ID] = req
	e.byUser[req.UserID] = append(e.byUser[req.UserID], req.ID)
}

func (e *Engine) transitionLocked(req *Request, to Status, by, notes string) error {
	if !req.Status.CanTransitionTo(to) {
		return fmt.Errorf("payout %s -> %s: %w", req.Status, to, ledger.ErrInvalidStateTransition)
	}
	if e.metrics != nil {
		e.metrics.PayoutTransitions.WithLabelValues(string(req.Status), string(to)).Inc()
	}
	req.Status = to
	now := e.now()
	req.ProcessedAt = &now
	req.ProcessedBy = by
	if notes != "" {
		req.Notes = notes
	}
	return nil
}

// effectiveLimits merges profile restrictions over the configured fallbacks.
// A zero profile field means "not set" and takes the fallback.
func (e *Engine) effectiveLimits(r risk.Restrictions) risk.Restrictions {
	out := r
	if out.MinWithdrawal <= 0 {
		out.MinWithdrawal = e.cfg.MinWithdrawal
	}
	if out.MaxPerTransaction <= 0 {
		out.MaxPerTransaction = e.cfg.MaxPerTransaction
	}
	if out.MaxDailyWithdrawal <= 0 {
		out.MaxDailyWithdrawal = e.cfg.MaxDaily
	}
	if out.MaxMonthlyWithdrawal <= 0 {
		out.MaxMonthlyWithdrawal = e.cfg.MaxMonthly
	}
	return out
}

// windowTotalsLocked sums withdrawals counting against today's and this
// month's limits: every non-rejected request requested in the window.
func (e *Engine) windowTotalsLocked(userID uuid.UUID) (day, month money.Amount) {
	now := e.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	for _, id := range e.byUser[userID] {
		req := e.requests[id]
		if req.Status == StatusRejected {
			continue
		}
		at := req.RequestedAt.UTC()
		if !at.Before(monthStart) {
			month += req.Amount
		}
		if !at.Before(dayStart) {
			day += req.Amount
		}
	}
	return day, month
}

func (e *Engine) raiseFlags(userID uuid.UUID, a risk.Assessment) {
	flags := a.Flags
	if a.BlockRecommended {
		flags = append(flags, risk.FraudFlag{
			Type:     "block_recommended",
			Severity: risk.SeverityCritical,
			Details:  "provider recommended blocking this withdrawal",
		})
	}
	for _, f := range flags {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.UserID = userID
		if f.Timestamp.IsZero() {
			f.Timestamp = e.now()
		}
		if f.Severity == "" {
			f.Severity = risk.SeverityForScore(a.RiskScore)
		}
		e.flags.Raise(f)
		if e.metrics != nil {
			e.metrics.FraudFlagsRaised.WithLabelValues(string(f.Severity)).Inc()
		}
		cp := f
		e.emit(Event{Flag: &cp})
	}
}

func (e *Engine) emitRequest(req *Request) {
	e.emit(Event{Request: req})
}

// emit mirrors the ledger store's output contract: blocking persist,
// non-blocking publish.
func (e *Engine) emit(ev Event) {
	if e.persistChan != nil {
		e.persistChan <- ev
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- ev:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (e *Engine) snapshot(id uuid.UUID) *Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.requests[id]
	if !ok {
		return nil
	}
	cp := *req
	return &cp
}

func (e *Engine) countSubmit(result string) {
	if e.metrics != nil {
		e.metrics.PayoutSubmitted.WithLabelValues(result).Inc()
	}
}
