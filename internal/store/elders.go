package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/carewatch/guardian/internal/model"
	"github.com/carewatch/guardian/internal/protocol"
)

// timestampLayout matches the ISO 8601 form used on the wire.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Persister loads and saves the elder cache.
type Persister interface {
	LoadElders(ctx context.Context) ([]model.Elder, error)
	SaveElders(ctx context.Context, elders []model.Elder) error
}

// ChangeKind describes what happened to a registry entry.
type ChangeKind string

const (
	ElderAdded   ChangeKind = "added"
	ElderUpdated ChangeKind = "updated"
	ElderRemoved ChangeKind = "removed"
)

// Change is delivered to the change handler after every mutation.
type Change struct {
	Kind  ChangeKind
	Elder model.Elder
}

// EldersOption configures an Elders registry.
type EldersOption func(*Elders)

// WithPersister enables Load and Save.
func WithPersister(p Persister) EldersOption {
	return func(e *Elders) {
		e.persister = p
	}
}

// WithEldersLogger sets the logger.
func WithEldersLogger(logger *slog.Logger) EldersOption {
	return func(e *Elders) {
		e.logger = logger
	}
}

// WithChangeHandler registers fn for every mutation. It runs outside the
// registry lock.
func WithChangeHandler(fn func(Change)) EldersOption {
	return func(e *Elders) {
		e.onChange = fn
	}
}

// Elders is the registry of paired elders. Entries keep insertion order.
type Elders struct {
	persister Persister
	logger    *slog.Logger
	onChange  func(Change)

	mu     sync.RWMutex
	elders map[string]model.Elder
	order  []string
	dirty  bool
}

// NewElders creates an empty registry.
func NewElders(opts ...EldersOption) *Elders {
	e := &Elders{
		logger: slog.Default(),
		elders: make(map[string]model.Elder),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add inserts elder, replacing any entry with the same id.
func (e *Elders) Add(elder model.Elder) error {
	if elder.ID == "" {
		return fmt.Errorf("add elder: id is required")
	}

	e.mu.Lock()
	kind := e.putLocked(elder)
	e.mu.Unlock()

	e.notify(Change{Kind: kind, Elder: elder})
	return nil
}

// Update applies fn to the elder with id. It reports whether the elder exists.
func (e *Elders) Update(id string, fn func(*model.Elder)) bool {
	e.mu.Lock()
	elder, ok := e.elders[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	fn(&elder)
	elder.ID = id
	e.elders[id] = elder
	e.dirty = true
	e.mu.Unlock()

	e.notify(Change{Kind: ElderUpdated, Elder: elder})
	return true
}

// Remove deletes the elder with id. It reports whether the elder existed.
func (e *Elders) Remove(id string) bool {
	e.mu.Lock()
	elder, ok := e.elders[id]
	if ok {
		delete(e.elders, id)
		e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
		e.dirty = true
	}
	e.mu.Unlock()

	if ok {
		e.notify(Change{Kind: ElderRemoved, Elder: elder})
	}
	return ok
}

// Set replaces the whole registry.
func (e *Elders) Set(elders []model.Elder) {
	e.mu.Lock()
	e.elders = make(map[string]model.Elder, len(elders))
	e.order = e.order[:0]
	for _, elder := range elders {
		if elder.ID != "" {
			e.putLocked(elder)
		}
	}
	e.dirty = true
	e.mu.Unlock()
}

func (e *Elders) putLocked(elder model.Elder) ChangeKind {
	kind := ElderUpdated
	if _, ok := e.elders[elder.ID]; !ok {
		e.order = append(e.order, elder.ID)
		kind = ElderAdded
	}
	e.elders[elder.ID] = elder
	e.dirty = true
	return kind
}

// Get returns the elder with id.
func (e *Elders) Get(id string) (model.Elder, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	elder, ok := e.elders[id]
	return elder, ok
}

// List returns all elders in insertion order.
func (e *Elders) List() []model.Elder {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Elder, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.elders[id])
	}
	return out
}

// IDs returns all elder ids in insertion order.
func (e *Elders) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

// Len returns the number of elders.
func (e *Elders) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.elders)
}

// OnlineCount returns the number of elders currently marked online.
func (e *Elders) OnlineCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, elder := range e.elders {
		if elder.IsOnline {
			n++
		}
	}
	return n
}

// ApplyState folds a state response into the elder's entry and marks it
// online. Unknown elders are ignored.
func (e *Elders) ApplyState(id string, st protocol.StatePayload, at time.Time) bool {
	return e.Update(id, func(elder *model.Elder) {
		if st.Elder.Name != "" {
			elder.Name = st.Elder.Name
		}
		if st.Elder.Age > 0 {
			elder.Age = st.Elder.Age
		}
		elder.BatteryLevel = st.Elder.BatteryLevel
		elder.LastSeen = st.Elder.LastHeartbeat
		if elder.LastSeen == "" {
			elder.LastSeen = at.UTC().Format(timestampLayout)
		}
		elder.IsOnline = true

		for _, a := range st.RecentAlerts {
			applyAlert(elder, a, at)
		}
	})
}

// RecordAlert updates the elder's latest alert if a is newer.
func (e *Elders) RecordAlert(a model.Alert, at time.Time) bool {
	return e.Update(a.ElderID, func(elder *model.Elder) {
		applyAlert(elder, a, at)
	})
}

func applyAlert(elder *model.Elder, a model.Alert, at time.Time) {
	if elder.LastAlert != nil {
		latest := model.Alert{TriggeredAt: elder.LastAlert.TriggeredAt}
		if !a.TriggeredTime(at).After(latest.TriggeredTime(time.Time{})) {
			return
		}
	}
	s := a.Summary()
	elder.LastAlert = &s
}

// MarkOffline flags the elder as unreachable.
func (e *Elders) MarkOffline(id string) bool {
	e.mu.RLock()
	elder, ok := e.elders[id]
	e.mu.RUnlock()
	if !ok || !elder.IsOnline {
		return false
	}
	return e.Update(id, func(elder *model.Elder) {
		elder.IsOnline = false
	})
}

// Load replaces the registry with the persisted cache. Without a persister
// it does nothing.
func (e *Elders) Load(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}

	elders, err := e.persister.LoadElders(ctx)
	if err != nil {
		return fmt.Errorf("load elders: %w", err)
	}

	e.Set(elders)
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()

	e.logger.Info("elder cache loaded", "count", len(elders))
	return nil
}

// Save writes the registry to the persister if it changed since the last
// load or save.
func (e *Elders) Save(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}

	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return nil
	}
	elders := make([]model.Elder, 0, len(e.order))
	for _, id := range e.order {
		elders = append(elders, e.elders[id])
	}
	e.dirty = false
	e.mu.Unlock()

	if err := e.persister.SaveElders(ctx, elders); err != nil {
		e.mu.Lock()
		e.dirty = true
		e.mu.Unlock()
		return fmt.Errorf("save elders: %w", err)
	}

	e.logger.Debug("elder cache saved", "count", len(elders))
	return nil
}

func (e *Elders) notify(c Change) {
	if e.onChange != nil {
		e.onChange(c)
	}
}
