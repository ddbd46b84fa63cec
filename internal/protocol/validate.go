package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPayload is returned when an outbound payload fails validation.
var ErrInvalidPayload = errors.New("invalid payload")

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validate checks a single schedule.
func (s MedicationScheduleInput) Validate() error {
	if !timeOfDay.MatchString(s.Time) {
		return invalid("schedule time %q must be HH:mm", s.Time)
	}
	if len(s.DaysOfWeek) == 0 {
		return invalid("schedule at %s has no days", s.Time)
	}
	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return invalid("day of week %d out of range 0-6", d)
		}
	}
	return nil
}

func validateSchedules(schedules []MedicationScheduleInput) error {
	for i, s := range schedules {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("schedules[%d]: %w", i, err)
		}
	}
	return nil
}

func (p AddMedicationPayload) Validate() error {
	if blank(p.Name) {
		return invalid("medication name is required")
	}
	if blank(p.Dosage) {
		return invalid("dosage is required")
	}
	if len(p.Schedules) == 0 {
		return invalid("at least one schedule is required")
	}
	return validateSchedules(p.Schedules)
}

func (p UpdateMedicationPayload) Validate() error {
	if blank(p.MedicationID) {
		return invalid("medicationId is required")
	}
	return validateSchedules(p.Schedules)
}

func (p DeleteMedicationPayload) Validate() error {
	if blank(p.MedicationID) {
		return invalid("medicationId is required")
	}
	return nil
}

// Valid reports whether p is a known priority. The empty priority is
// accepted and treated as normal by the elder.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (p SendReminderPayload) Validate() error {
	if blank(p.Title) {
		return invalid("reminder title is required")
	}
	if blank(p.Message) {
		return invalid("reminder message is required")
	}
	if !p.Priority.Valid() {
		return invalid("unknown priority %q", p.Priority)
	}
	return nil
}

func (p SendMessagePayload) Validate() error {
	if blank(p.Message) {
		return invalid("message text is required")
	}
	return nil
}

func (p UpdateEmergencyContactPayload) Validate() error {
	if blank(p.Name) {
		return invalid("contact name is required")
	}
	if blank(p.PhoneNumber) {
		return invalid("contact phone number is required")
	}
	return nil
}

func (p DeleteEmergencyContactPayload) Validate() error {
	if blank(p.ContactID) {
		return invalid("contactId is required")
	}
	return nil
}
