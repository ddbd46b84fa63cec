package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carewatch/guardian/internal/model"
	"github.com/carewatch/guardian/internal/protocol"
)

type memPersister struct {
	mu      sync.Mutex
	stored  []model.Elder
	saves   int
	loadErr error
	saveErr error
}

func (p *memPersister) LoadElders(ctx context.Context) ([]model.Elder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stored, p.loadErr
}

func (p *memPersister) SaveElders(ctx context.Context, elders []model.Elder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.stored = elders
	p.saves++
	return nil
}

func TestEldersAddGetList(t *testing.T) {
	var changes []Change
	e := NewElders(WithChangeHandler(func(c Change) { changes = append(changes, c) }))

	if err := e.Add(model.Elder{}); err == nil {
		t.Error("Add() expected error for missing id")
	}

	e.Add(model.Elder{ID: "b", Name: "Bea"})
	e.Add(model.Elder{ID: "a", Name: "Al"})
	e.Add(model.Elder{ID: "b", Name: "Beatrice"})

	got, ok := e.Get("b")
	if !ok || got.Name != "Beatrice" {
		t.Errorf("Get(b) = %+v, %v", got, ok)
	}
	if _, ok := e.Get("zzz"); ok {
		t.Error("Get(zzz) found")
	}

	list := e.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Errorf("List() = %+v, want insertion order b, a", list)
	}

	wantKinds := []ChangeKind{ElderAdded, ElderAdded, ElderUpdated}
	if len(changes) != len(wantKinds) {
		t.Fatalf("changes = %d, want %d", len(changes), len(wantKinds))
	}
	for i, k := range wantKinds {
		if changes[i].Kind != k {
			t.Errorf("changes[%d].Kind = %q, want %q", i, changes[i].Kind, k)
		}
	}
}

func TestEldersUpdateRemove(t *testing.T) {
	e := NewElders()
	e.Add(model.Elder{ID: "a", Name: "Al"})
	e.Add(model.Elder{ID: "b", Name: "Bea"})

	if e.Update("zzz", func(*model.Elder) {}) {
		t.Error("Update(zzz) = true, want false")
	}
	if !e.Update("a", func(el *model.Elder) { el.Relationship = "father"; el.ID = "hijack" }) {
		t.Fatal("Update(a) = false")
	}
	got, _ := e.Get("a")
	if got.Relationship != "father" || got.ID != "a" {
		t.Errorf("Get(a) = %+v", got)
	}

	if !e.Remove("a") {
		t.Error("Remove(a) = false")
	}
	if e.Remove("a") {
		t.Error("second Remove(a) = true")
	}
	if ids := e.IDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("IDs() = %v, want [b]", ids)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}

func TestEldersApplyState(t *testing.T) {
	e := NewElders()
	e.Add(model.Elder{ID: "e1", Name: "Old name"})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	st := protocol.StatePayload{
		Elder: protocol.ElderState{Name: "Grandma", Age: 81, BatteryLevel: 64},
		RecentAlerts: []model.Alert{
			{Type: model.AlertFall, TriggeredAt: "2024-05-01T09:00:00.000Z"},
			{Type: model.AlertSOS, TriggeredAt: "2024-05-01T10:00:00.000Z"},
			{Type: model.AlertLowBattery, TriggeredAt: "2024-04-30T10:00:00.000Z"},
		},
	}

	if e.ApplyState("unknown", st, at) {
		t.Error("ApplyState(unknown) = true")
	}
	if !e.ApplyState("e1", st, at) {
		t.Fatal("ApplyState(e1) = false")
	}

	got, _ := e.Get("e1")
	if got.Name != "Grandma" || got.Age != 81 || got.BatteryLevel != 64 {
		t.Errorf("elder = %+v", got)
	}
	if !got.IsOnline {
		t.Error("IsOnline = false after state response")
	}
	if got.LastSeen != "2024-05-01T12:00:00.000Z" {
		t.Errorf("LastSeen = %q, want receive time", got.LastSeen)
	}
	if got.LastAlert == nil || got.LastAlert.Type != model.AlertSOS {
		t.Errorf("LastAlert = %+v, want latest SOS", got.LastAlert)
	}
	if e.OnlineCount() != 1 {
		t.Errorf("OnlineCount() = %d, want 1", e.OnlineCount())
	}

	st.Elder.LastHeartbeat = "2024-05-01T11:59:00.000Z"
	e.ApplyState("e1", st, at)
	got, _ = e.Get("e1")
	if got.LastSeen != "2024-05-01T11:59:00.000Z" {
		t.Errorf("LastSeen = %q, want heartbeat", got.LastSeen)
	}
}

func TestEldersRecordAlertKeepsLatest(t *testing.T) {
	e := NewElders()
	e.Add(model.Elder{ID: "e1"})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	e.RecordAlert(model.Alert{ElderID: "e1", Type: model.AlertFall, TriggeredAt: "2024-05-01T10:00:00.000Z"}, at)
	e.RecordAlert(model.Alert{ElderID: "e1", Type: model.AlertInactivity, TriggeredAt: "2024-05-01T08:00:00.000Z"}, at)

	got, _ := e.Get("e1")
	if got.LastAlert == nil || got.LastAlert.Type != model.AlertFall {
		t.Errorf("LastAlert = %+v, want FALL", got.LastAlert)
	}

	// Alerts without a timestamp count as received now.
	e.RecordAlert(model.Alert{ElderID: "e1", Type: model.AlertSOS}, at)
	got, _ = e.Get("e1")
	if got.LastAlert.Type != model.AlertSOS {
		t.Errorf("LastAlert.Type = %q, want SOS", got.LastAlert.Type)
	}

	if e.RecordAlert(model.Alert{ElderID: "other", Type: model.AlertSOS}, at) {
		t.Error("RecordAlert for unknown elder = true")
	}
}

func TestEldersMarkOffline(t *testing.T) {
	var changes int
	e := NewElders(WithChangeHandler(func(Change) { changes++ }))
	e.Add(model.Elder{ID: "e1", IsOnline: true})

	if !e.MarkOffline("e1") {
		t.Error("MarkOffline(e1) = false")
	}
	if e.MarkOffline("e1") {
		t.Error("MarkOffline on offline elder = true")
	}
	if e.MarkOffline("zzz") {
		t.Error("MarkOffline(zzz) = true")
	}
	if changes != 2 {
		t.Errorf("changes = %d, want 2", changes)
	}
}

func TestEldersPersistence(t *testing.T) {
	p := &memPersister{stored: []model.Elder{{ID: "a", Name: "Al"}, {ID: "b"}}}
	e := NewElders(WithPersister(p))

	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", e.Len())
	}

	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.saves != 0 {
		t.Errorf("saves = %d, want 0 for unchanged registry", p.saves)
	}

	e.Remove("b")
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.saves != 1 || len(p.stored) != 1 || p.stored[0].ID != "a" {
		t.Errorf("stored = %+v after %d saves", p.stored, p.saves)
	}

	p.saveErr = errors.New("db down")
	e.Add(model.Elder{ID: "c"})
	if err := e.Save(context.Background()); err == nil {
		t.Fatal("Save() expected error")
	}
	p.saveErr = nil
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("retry Save failed: %v", err)
	}
	if len(p.stored) != 2 {
		t.Errorf("stored = %+v, want retried save", p.stored)
	}
}

func TestEldersLoadError(t *testing.T) {
	p := &memPersister{loadErr: errors.New("db down")}
	e := NewElders(WithPersister(p))
	e.Add(model.Elder{ID: "kept"})

	if err := e.Load(context.Background()); err == nil {
		t.Fatal("Load() expected error")
	}
	if _, ok := e.Get("kept"); !ok {
		t.Error("failed Load cleared the registry")
	}
}

func TestEldersWithoutPersister(t *testing.T) {
	e := NewElders()
	if err := e.Load(context.Background()); err != nil {
		t.Errorf("Load() = %v, want nil", err)
	}
	e.Add(model.Elder{ID: "a"})
	if err := e.Save(context.Background()); err != nil {
		t.Errorf("Save() = %v, want nil", err)
	}
}
