package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAlertTypeSeverity(t *testing.T) {
	tests := []struct {
		typ  AlertType
		want Severity
	}{
		{AlertSOS, SeverityCritical},
		{AlertFall, SeverityCritical},
		{AlertMissedMed, SeverityWarning},
		{AlertInactivity, SeverityWarning},
		{AlertLowBattery, SeverityInfo},
		{AlertType("UNKNOWN"), SeverityInfo},
	}

	for _, tt := range tests {
		if got := tt.typ.Severity(); got != tt.want {
			t.Errorf("%s.Severity() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestAlertTypeValid(t *testing.T) {
	for _, typ := range []AlertType{AlertSOS, AlertFall, AlertInactivity, AlertLowBattery, AlertMissedMed} {
		if !typ.Valid() {
			t.Errorf("%s.Valid() = false, want true", typ)
		}
	}
	if AlertType("sos").Valid() {
		t.Error("lowercase alert type should not be valid")
	}
}

func TestAlert(t *testing.T) {
	t.Run("EnsureID assigns uuid", func(t *testing.T) {
		a := Alert{ElderID: "elder-1", Type: AlertFall}
		a.EnsureID()
		if _, err := uuid.Parse(a.ID); err != nil {
			t.Errorf("ID = %q is not a uuid: %v", a.ID, err)
		}
	})

	t.Run("EnsureID keeps existing id", func(t *testing.T) {
		a := Alert{ID: "alert-7"}
		a.EnsureID()
		if a.ID != "alert-7" {
			t.Errorf("ID = %q, want alert-7", a.ID)
		}
	})

	t.Run("TriggeredTime", func(t *testing.T) {
		fallback := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

		a := Alert{TriggeredAt: "2024-01-01T10:30:00.000Z"}
		want := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
		if got := a.TriggeredTime(fallback); !got.Equal(want) {
			t.Errorf("TriggeredTime = %v, want %v", got, want)
		}

		if got := (Alert{}).TriggeredTime(fallback); !got.Equal(fallback) {
			t.Errorf("empty TriggeredTime = %v, want fallback", got)
		}
		if got := (Alert{TriggeredAt: "yesterday"}).TriggeredTime(fallback); !got.Equal(fallback) {
			t.Errorf("invalid TriggeredTime = %v, want fallback", got)
		}
	})

	t.Run("Summary", func(t *testing.T) {
		a := Alert{ID: "a1", Type: AlertSOS, TriggeredAt: "2024-01-01T00:00:00Z", Resolved: true}
		s := a.Summary()
		if s.Type != AlertSOS || s.TriggeredAt != a.TriggeredAt || !s.Resolved {
			t.Errorf("Summary = %+v", s)
		}
	})
}
