package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carewatch/guardian/internal/api"
	"github.com/carewatch/guardian/internal/model"
)

type fakePairingSource struct {
	mu     sync.Mutex
	elders []api.PairedElder
	err    error
	calls  atomic.Int32
}

func (f *fakePairingSource) PairedElders(ctx context.Context) ([]api.PairedElder, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elders, f.err
}

func (f *fakePairingSource) set(elders ...api.PairedElder) {
	f.mu.Lock()
	f.elders = elders
	f.mu.Unlock()
}

func TestSyncerReconcile(t *testing.T) {
	elders := NewElders()
	elders.Add(model.Elder{ID: "stale"})
	elders.Add(model.Elder{ID: "kept", Name: "Kept", IsOnline: false})

	src := &fakePairingSource{}
	src.set(
		api.PairedElder{ElderID: "kept", IsOnline: true},
		api.PairedElder{ElderID: "new", PairedAt: "2024-01-01T00:00:00.000Z"},
		api.PairedElder{ElderID: ""},
	)

	s := NewSyncer(DefaultSyncConfig(), src, elders, slog.Default())
	res, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	want := SyncResult{Added: 1, Removed: 1, Changed: 1, Total: 3}
	if res != want {
		t.Errorf("Reconcile() = %+v, want %+v", res, want)
	}

	if _, ok := elders.Get("stale"); ok {
		t.Error("unpaired elder was not removed")
	}
	kept, _ := elders.Get("kept")
	if !kept.IsOnline || kept.Name != "Kept" {
		t.Errorf("kept = %+v", kept)
	}
	added, ok := elders.Get("new")
	if !ok || added.PairedAt != "2024-01-01T00:00:00.000Z" {
		t.Errorf("new = %+v, %v", added, ok)
	}

	res, _ = s.Reconcile(context.Background())
	if res.Added+res.Removed+res.Changed != 0 {
		t.Errorf("second Reconcile() = %+v, want no changes", res)
	}
}

func TestSyncerReconcileErrorKeepsRegistry(t *testing.T) {
	elders := NewElders()
	elders.Add(model.Elder{ID: "cached"})

	src := &fakePairingSource{err: errors.New("api down")}
	s := NewSyncer(DefaultSyncConfig(), src, elders, nil)

	if _, err := s.Reconcile(context.Background()); err == nil {
		t.Fatal("Reconcile() expected error")
	}
	if elders.Len() != 1 {
		t.Errorf("Len() = %d, want cached entry kept", elders.Len())
	}
}

func TestSyncerStartStop(t *testing.T) {
	elders := NewElders()
	src := &fakePairingSource{}
	src.set(api.PairedElder{ElderID: "e1"})

	s := NewSyncer(SyncConfig{Interval: 10 * time.Millisecond}, src, elders, nil)
	s.Start(context.Background())

	if elders.Len() != 1 {
		t.Fatalf("Len() = %d after Start, want 1", elders.Len())
	}

	src.set(api.PairedElder{ElderID: "e1"}, api.PairedElder{ElderID: "e2"})
	deadline := time.Now().Add(2 * time.Second)
	for elders.Len() != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if elders.Len() != 2 {
		t.Errorf("Len() = %d, want background reconcile to add e2", elders.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if src.calls.Load() != calls {
		t.Error("reconciliation continued after Stop")
	}
}

func TestSyncerWithAPIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []api.PairedElder{{ElderID: "e1", IsOnline: true}},
		})
	}))
	defer server.Close()

	client := api.NewClient(server.URL, "", api.WithGuardianID("g1"))
	elders := NewElders()
	s := NewSyncer(SyncConfig{}, client, elders, nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	got, ok := elders.Get("e1")
	if !ok || !got.IsOnline {
		t.Errorf("Get(e1) = %+v, %v", got, ok)
	}
}
