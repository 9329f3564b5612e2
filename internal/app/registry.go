package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// errRegistryClosed is returned by Register once CancelAll has run.
var errRegistryClosed = errors.New("monitor registry closed")

// MonitorInfo describes one supervised trade.
type MonitorInfo struct {
	TradeID   string          `json:"tradeId"`
	Symbol    string          `json:"symbol"`
	Mode      domain.ExitMode `json:"mode"`
	Deadline  time.Time       `json:"deadline"`
	StartedAt time.Time       `json:"startedAt"`
}

type monitorEntry struct {
	info   MonitorInfo
	cancel context.CancelFunc
}

// MonitorRegistry tracks the trades currently under supervision.
// Removing an entry cancels its monitor, so a stale trigger can never fire
// after the trade has been claimed.
type MonitorRegistry struct {
	mu      sync.Mutex
	entries map[string]*monitorEntry
	closed  bool
}

// NewMonitorRegistry creates an empty registry.
func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{entries: make(map[string]*monitorEntry)}
}

// Register adds a monitor for info.TradeID. cancel stops the monitor.
func (r *MonitorRegistry) Register(info MonitorInfo, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("register trade %s: %w: %w", info.TradeID, ports.ErrServiceStopped, errRegistryClosed)
	}
	if _, exists := r.entries[info.TradeID]; exists {
		return fmt.Errorf("register trade %s: %w", info.TradeID, ports.ErrAlreadySupervised)
	}
	r.entries[info.TradeID] = &monitorEntry{info: info, cancel: cancel}
	return nil
}

// Claim removes the trade's entry and cancels its monitor. Only the first
// caller for a registered trade gets true; that caller owns the terminal transition.
func (r *MonitorRegistry) Claim(tradeID string) bool {
	r.mu.Lock()
	entry, ok := r.entries[tradeID]
	if ok {
		delete(r.entries, tradeID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.cancel()
	return true
}

// Has reports whether the trade is currently supervised.
func (r *MonitorRegistry) Has(tradeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[tradeID]
	return ok
}

// CancelAll cancels and removes every entry and refuses further registrations.
// It returns the number of monitors cancelled.
func (r *MonitorRegistry) CancelAll() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*monitorEntry)
	r.closed = true
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	return len(entries)
}

// Active returns a snapshot of the supervised trades, oldest first.
func (r *MonitorRegistry) Active() []MonitorInfo {
	r.mu.Lock()
	out := make([]MonitorInfo, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].TradeID < out[j].TradeID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of supervised trades.
func (r *MonitorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
