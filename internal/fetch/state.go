package fetch

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"pricepulse/services/cache"
)

// ProviderState tracks per-strategy cooldown windows and failure streaks.
// It is owned by a single orchestrator, lives in-process, and rebuilds empty
// on restart. When a shared cache is configured, cooldown markers are
// mirrored there so sibling worker processes skip blocked strategies too.
type ProviderState struct {
	mu       sync.Mutex
	cacheSvc cache.CacheService
	states   map[string]*strategyState
}

type strategyState struct {
	cooldownUntil       time.Time
	consecutiveFailures int
}

// NewProviderState creates provider state; cacheSvc may be nil.
func NewProviderState(cacheSvc cache.CacheService) *ProviderState {
	return &ProviderState{
		cacheSvc: cacheSvc,
		states:   make(map[string]*strategyState),
	}
}

func cooldownKey(name string) string {
	return "cooldown:" + name
}

// CoolingDown reports whether the strategy is inside a cooldown window and
// how long remains. A marker set by another process counts as cooling down
// with an unknown remainder.
func (ps *ProviderState) CoolingDown(name string, now time.Time) (time.Duration, bool) {
	ps.mu.Lock()
	st, ok := ps.states[name]
	if ok && now.Before(st.cooldownUntil) {
		remaining := st.cooldownUntil.Sub(now)
		ps.mu.Unlock()
		return remaining, true
	}
	ps.mu.Unlock()

	if ps.cacheSvc != nil {
		if raw, err := ps.cacheSvc.Get(cooldownKey(name)); err == nil {
			remaining := time.Duration(0)
			if secs, convErr := strconv.Atoi(string(raw)); convErr == nil {
				remaining = time.Duration(secs) * time.Second
			}
			return remaining, true
		}
	}
	return 0, false
}

// SetCooldown opens a cooldown window for the strategy and bumps its failure
// streak.
func (ps *ProviderState) SetCooldown(name string, d time.Duration, now time.Time) {
	ps.mu.Lock()
	st := ps.ensure(name)
	st.cooldownUntil = now.Add(d)
	st.consecutiveFailures++
	ps.mu.Unlock()

	if ps.cacheSvc != nil {
		value := []byte(fmt.Sprintf("%d", int(d.Seconds())))
		// Best effort; the in-process window is authoritative
		_ = ps.cacheSvc.Set(cooldownKey(name), value, d)
	}
}

// RecordFailure bumps the failure streak without opening a cooldown window.
func (ps *ProviderState) RecordFailure(name string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	st := ps.ensure(name)
	st.consecutiveFailures++
	return st.consecutiveFailures
}

// Reset clears the failure streak after a success.
func (ps *ProviderState) Reset(name string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	st := ps.ensure(name)
	st.consecutiveFailures = 0
}

// Failures returns the current failure streak for a strategy.
func (ps *ProviderState) Failures(name string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.ensure(name).consecutiveFailures
}

func (ps *ProviderState) ensure(name string) *strategyState {
	st, ok := ps.states[name]
	if !ok {
		st = &strategyState{}
		ps.states[name] = st
	}
	return st
}
