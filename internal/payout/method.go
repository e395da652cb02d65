// Package payout implements the withdrawal workflow: verified payout
// methods, the request state machine, and the engine that ties compliance,
// fraud signals, and the balance ledger together.
package payout

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
)

// MethodType enumerates supported payout rails.
type MethodType string

const (
	MethodBankTransfer MethodType = "bank_transfer"
	MethodMobilePay    MethodType = "mobilepay"
	MethodPayPal       MethodType = "paypal"
)

// Valid reports whether the method type is a known rail.
func (t MethodType) Valid() bool {
	switch t {
	case MethodBankTransfer, MethodMobilePay, MethodPayPal:
		return true
	}
	return false
}

// Method is a destination for withdrawals. Details holds masked,
// rail-specific fields (IBAN tail, phone number, account email); the raw
// credentials never enter this service.
type Method struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      MethodType        `json:"type"`
	Name      string            `json:"name,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	IsDefault bool              `json:"is_default"`
	Verified  bool              `json:"verified"`
	CreatedAt time.Time         `json:"created_at"`
}

// MethodRegistry is the in-memory book of payout methods. At most one
// method per user is the default.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[uuid.UUID]*Method
	byUser  map[uuid.UUID][]uuid.UUID
}

// NewMethodRegistry creates an empty registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		methods: make(map[uuid.UUID]*Method),
		byUser:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// Add registers a new, unverified method. The first method for a user
// becomes the default; a later method marked default demotes the previous
// one.
func (r *MethodRegistry) Add(m Method) (Method, error) {
	if !m.Type.Valid() {
		return Method{}, fmt.Errorf("unknown payout method type %q: %w", m.Type, ledger.ErrInvalidAmount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byUser[m.UserID]) == 0 {
		m.IsDefault = true
	} else if m.IsDefault {
		for _, id := range r.byUser[m.UserID] {
			r.methods[id].IsDefault = false
		}
	}
	m.Verified = false

	stored := m
	r.methods[m.ID] = &stored
	r.byUser[m.UserID] = append(r.byUser[m.UserID], m.ID)
	return stored, nil
}

// Verify marks a method as verified after the out-of-band check completes.
func (r *MethodRegistry) Verify(id uuid.UUID) (Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	if !ok {
		return Method{}, fmt.Errorf("payout method %s: %w", id, ledger.ErrMethodNotVerified)
	}
	m.Verified = true
	return *m, nil
}

// Get returns a method by ID.
func (r *MethodRegistry) Get(id uuid.UUID) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[id]
	if !ok {
		return Method{}, false
	}
	return *m, true
}

// ListByUser returns a user's methods in registration order.
func (r *MethodRegistry) ListByUser(userID uuid.UUID) []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]Method, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.methods[id])
	}
	return out
}

// Restore loads a persisted method during startup rebuild.
func (r *MethodRegistry) Restore(m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := m
	r.methods[m.ID] = &stored
	r.byUser[m.UserID] = append(r.byUser[m.UserID], m.ID)
}
