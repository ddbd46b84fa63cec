package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Elders
// -----------------------------------------------------------------------------

// Elder is a paired, remotely monitored device as seen by the guardian.
type Elder struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Age          int           `json:"age,omitempty"`
	Relationship string        `json:"relationship,omitempty"`
	IsOnline     bool          `json:"isOnline"`
	LastSeen     string        `json:"lastSeen,omitempty"`     // ISO 8601
	BatteryLevel int           `json:"batteryLevel,omitempty"` // Percent (0-100)
	PairedAt     string        `json:"pairedAt,omitempty"`     // ISO 8601
	LastAlert    *AlertSummary `json:"lastAlert,omitempty"`
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

// AlertType classifies an alert raised by an elder device.
type AlertType string

const (
	AlertSOS        AlertType = "SOS"
	AlertFall       AlertType = "FALL"
	AlertInactivity AlertType = "INACTIVITY"
	AlertLowBattery AlertType = "LOW_BATTERY"
	AlertMissedMed  AlertType = "MISSED_MED"
)

// Severity ranks how urgently an alert needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Severity returns the severity of the alert type. Unknown types are info.
func (t AlertType) Severity() Severity {
	switch t {
	case AlertSOS, AlertFall:
		return SeverityCritical
	case AlertMissedMed, AlertInactivity:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertSOS, AlertFall, AlertInactivity, AlertLowBattery, AlertMissedMed:
		return true
	}
	return false
}

// Location is a GPS fix attached to an alert.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Alert is a single alert raised by an elder device.
type Alert struct {
	ID           string    `json:"id"`
	ElderID      string    `json:"elderId"`
	Type         AlertType `json:"type"`
	TriggeredAt  string    `json:"triggeredAt"` // ISO 8601
	Location     *Location `json:"location,omitempty"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
	Resolved     bool      `json:"resolved"`
	Notes        string    `json:"notes,omitempty"`
}

// EnsureID assigns a random ID when the device did not supply one.
func (a *Alert) EnsureID() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
}

// TriggeredTime parses TriggeredAt, falling back to fallback when absent or invalid.
func (a Alert) TriggeredTime(fallback time.Time) time.Time {
	if a.TriggeredAt == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, a.TriggeredAt)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// Summary returns the condensed form shown in elder listings.
func (a Alert) Summary() AlertSummary {
	return AlertSummary{
		Type:        a.Type,
		TriggeredAt: a.TriggeredAt,
		Resolved:    a.Resolved,
	}
}

// AlertSummary is the condensed form of the latest alert for an elder.
type AlertSummary struct {
	Type        AlertType `json:"type"`
	TriggeredAt string    `json:"triggeredAt"`
	Resolved    bool      `json:"resolved"`
}

// -----------------------------------------------------------------------------
// Medications
// -----------------------------------------------------------------------------

// Medication is a medication configured on an elder device.
type Medication struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions,omitempty"`
}

// MedicationSchedule is one recurring dose time for a medication.
type MedicationSchedule struct {
	ID           string `json:"id"`
	MedicationID string `json:"medicationId"`
	Time         string `json:"time"`       // HH:MM
	DaysOfWeek   []int  `json:"daysOfWeek"` // 0-6, Sunday = 0
	Enabled      bool   `json:"enabled"`
}

// MedicationLogStatus records what happened at a scheduled dose.
type MedicationLogStatus string

const (
	MedicationTaken   MedicationLogStatus = "taken"
	MedicationMissed  MedicationLogStatus = "missed"
	MedicationSkipped MedicationLogStatus = "skipped"
)

// MedicationLog is the outcome of one scheduled dose.
type MedicationLog struct {
	ID            string              `json:"id"`
	MedicationID  string              `json:"medicationId"`
	ScheduleID    string              `json:"scheduleId"`
	ScheduledTime string              `json:"scheduledTime"`
	TakenAt       string              `json:"takenAt,omitempty"`
	Status        MedicationLogStatus `json:"status"`
}

// MedicationSummary is the day's adherence summary included in state responses.
type MedicationSummary struct {
	TodayTotal  int `json:"todayTotal"`
	TakenToday  int `json:"takenToday"`
	MissedToday int `json:"missedToday"`
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthCheckIn is a daily self-reported health check-in.
type HealthCheckIn struct {
	ID           string   `json:"id"`
	ElderID      string   `json:"elderId"`
	Date         string   `json:"date"`
	Mood         int      `json:"mood,omitempty"`         // 1-5
	PainLevel    int      `json:"painLevel,omitempty"`    // 1-10
	SleepQuality int      `json:"sleepQuality,omitempty"` // 1-5
	Symptoms     []string `json:"symptoms,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}
