package risk

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrFlagNotFound is returned when a flag ID is unknown.
var ErrFlagNotFound = errors.New("fraud flag not found")

// FlagRegistry is the in-memory authoritative book of fraud flags.
// Durability is handled by the caller, which forwards every mutation to the
// persistence worker.
type FlagRegistry struct {
	mu     sync.RWMutex
	flags  map[uuid.UUID]*FraudFlag
	byUser map[uuid.UUID][]uuid.UUID
}

// NewFlagRegistry creates an empty registry.
func NewFlagRegistry() *FlagRegistry {
	return &FlagRegistry{
		flags:  make(map[uuid.UUID]*FraudFlag),
		byUser: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Raise records a new flag. The flag's ID must be set by the caller.
func (r *FlagRegistry) Raise(flag FraudFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := flag
	r.flags[flag.ID] = &stored
	r.byUser[flag.UserID] = append(r.byUser[flag.UserID], flag.ID)
}

// Resolve marks a flag as handled by an operator. Resolving an already
// resolved flag is a no-op returning the current state.
func (r *FlagRegistry) Resolve(id uuid.UUID, by string) (FraudFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag, ok := r.flags[id]
	if !ok {
		return FraudFlag{}, ErrFlagNotFound
	}
	if !flag.Resolved {
		flag.Resolved = true
		flag.ResolvedBy = by
	}
	return *flag, nil
}

// Get returns a flag by ID.
func (r *FlagRegistry) Get(id uuid.UUID) (FraudFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flag, ok := r.flags[id]
	if !ok {
		return FraudFlag{}, ErrFlagNotFound
	}
	return *flag, nil
}

// ListByUser returns a user's flags, newest first. Resolved flags are
// included only when requested.
func (r *FlagRegistry) ListByUser(userID uuid.UUID, includeResolved bool) []FraudFlag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]FraudFlag, 0, len(ids))
	for _, id := range ids {
		flag := r.flags[id]
		if flag.Resolved && !includeResolved {
			continue
		}
		out = append(out, *flag)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// OpenSince counts unresolved flags raised for a user at or after cutoff.
func (r *FlagRegistry) OpenSince(userID uuid.UUID, cutoff time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range r.byUser[userID] {
		flag := r.flags[id]
		if !flag.Resolved && !flag.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n
}

// Restore loads a flag during startup rebuild, bypassing emission.
func (r *FlagRegistry) Restore(flag FraudFlag) {
	r.Raise(flag)
}
