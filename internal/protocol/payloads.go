package protocol

import "github.com/carewatch/guardian/internal/model"

// Payload is implemented by every payload shape. The method ties a shape to
// the envelope type that carries it.
type Payload interface {
	MessageType() MessageType
}

// Validator is implemented by payloads that check their own fields before
// being sent.
type Validator interface {
	Validate() error
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// GetStateRequest asks an elder for its current state.
type GetStateRequest struct {
	IncludeMedications   bool `json:"includeMedications,omitempty"`
	IncludeAlertsSummary bool `json:"includeAlertsSummary,omitempty"`
	IncludeHealthSummary bool `json:"includeHealthSummary,omitempty"`
}

// ElderState is the device-reported part of a state response.
type ElderState struct {
	Name          string `json:"name"`
	Age           int    `json:"age,omitempty"`
	BatteryLevel  int    `json:"batteryLevel"`
	LastHeartbeat string `json:"lastHeartbeat"`
}

// StatePayload answers GET_STATE.
type StatePayload struct {
	Elder             ElderState               `json:"elder"`
	RecentAlerts      []model.Alert            `json:"recentAlerts"`
	MedicationSummary *model.MedicationSummary `json:"medicationSummary,omitempty"`
}

// GetMedicationsRequest asks for the elder's medication configuration.
type GetMedicationsRequest struct{}

// MedicationsPayload answers GET_MEDICATIONS.
type MedicationsPayload struct {
	Medications []model.Medication         `json:"medications"`
	Schedules   []model.MedicationSchedule `json:"schedules"`
	Logs        []model.MedicationLog      `json:"logs"`
}

// SchedulesFor returns the schedules belonging to a medication.
func (p MedicationsPayload) SchedulesFor(medicationID string) []model.MedicationSchedule {
	var out []model.MedicationSchedule
	for _, s := range p.Schedules {
		if s.MedicationID == medicationID {
			out = append(out, s)
		}
	}
	return out
}

// UpdateMedicationsPayload replaces the elder's full medication list.
type UpdateMedicationsPayload struct {
	Medications []model.Medication         `json:"medications"`
	Schedules   []model.MedicationSchedule `json:"schedules"`
}

// UpdateAckPayload answers UPDATE_MEDICATIONS.
type UpdateAckPayload struct {
	Message string `json:"message,omitempty"`
}

// GetAlertHistoryRequest asks for past alerts.
type GetAlertHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// AlertHistoryPayload answers GET_ALERT_HISTORY.
type AlertHistoryPayload struct {
	Alerts []model.Alert `json:"alerts"`
}

// GetHealthHistoryRequest asks for past health check-ins.
type GetHealthHistoryRequest struct {
	Days int `json:"days,omitempty"`
}

// HealthHistoryPayload answers GET_HEALTH_HISTORY.
type HealthHistoryPayload struct {
	CheckIns []model.HealthCheckIn `json:"checkIns"`
}

// AlertEventPayload is pushed by an elder when an alert fires.
type AlertEventPayload struct {
	model.Alert
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

// MedicationScheduleInput is a schedule supplied when adding or updating a medication.
type MedicationScheduleInput struct {
	Time       string `json:"time"`       // HH:mm
	DaysOfWeek []int  `json:"daysOfWeek"` // 0-6, Sunday = 0
	Enabled    bool   `json:"enabled"`
}

// AddMedicationPayload is the body of ADD_MEDICATION.
type AddMedicationPayload struct {
	Name         string                    `json:"name"`
	Dosage       string                    `json:"dosage"`
	Instructions string                    `json:"instructions"`
	Schedules    []MedicationScheduleInput `json:"schedules"`
}

// UpdateMedicationPayload is the body of UPDATE_MEDICATION. Empty fields are left unchanged.
type UpdateMedicationPayload struct {
	MedicationID string                    `json:"medicationId"`
	Name         string                    `json:"name,omitempty"`
	Dosage       string                    `json:"dosage,omitempty"`
	Instructions string                    `json:"instructions,omitempty"`
	Schedules    []MedicationScheduleInput `json:"schedules,omitempty"`
}

// DeleteMedicationPayload is the body of DELETE_MEDICATION.
type DeleteMedicationPayload struct {
	MedicationID string `json:"medicationId"`
}

// Priority of a reminder.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// SendReminderPayload is the body of SEND_REMINDER.
type SendReminderPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority Priority `json:"priority,omitempty"`
}

// SendMessagePayload is the body of SEND_MESSAGE.
type SendMessagePayload struct {
	GuardianName           string `json:"guardianName"`
	Message                string `json:"message"`
	RequiresAcknowledgment bool   `json:"requiresAcknowledgment,omitempty"`
}

// UpdateEmergencyContactPayload is the body of UPDATE_EMERGENCY_CONTACT.
// An empty ContactID creates a new contact.
type UpdateEmergencyContactPayload struct {
	ContactID    string `json:"contactId,omitempty"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	Relationship string `json:"relationship"`
}

// DeleteEmergencyContactPayload is the body of DELETE_EMERGENCY_CONTACT.
type DeleteEmergencyContactPayload struct {
	ContactID string `json:"contactId"`
}

// CommandSuccessPayload answers any command that succeeded.
type CommandSuccessPayload struct {
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// CommandErrorPayload answers a command the elder rejected.
type CommandErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

// ErrorPayload is sent by the relay when it cannot route or process a request.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ConnectionAckPayload is sent by the relay once the socket is registered.
type ConnectionAckPayload struct {
	DeviceID string `json:"deviceId,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (GetStateRequest) MessageType() MessageType { return TypeGetState }
func (StatePayload) MessageType() MessageType { return TypeStateResponse }
func (GetMedicationsRequest) MessageType() MessageType { return TypeGetMedications }
func (MedicationsPayload) MessageType() MessageType { return TypeMedicationsResponse }
func (UpdateMedicationsPayload) MessageType() MessageType { return TypeUpdateMedications }
func (UpdateAckPayload) MessageType() MessageType { return TypeUpdateAck }
func (GetAlertHistoryRequest) MessageType() MessageType { return TypeGetAlertHistory }
func (AlertHistoryPayload) MessageType() MessageType { return TypeAlertHistoryResponse }
func (GetHealthHistoryRequest) MessageType() MessageType { return TypeGetHealthHistory }
func (HealthHistoryPayload) MessageType() MessageType { return TypeHealthHistoryResponse }
func (AlertEventPayload) MessageType() MessageType { return TypeAlertEvent }
func (AddMedicationPayload) MessageType() MessageType { return TypeAddMedication }
func (UpdateMedicationPayload) MessageType() MessageType { return TypeUpdateMedication }
func (DeleteMedicationPayload) MessageType() MessageType { return TypeDeleteMedication }
func (SendReminderPayload) MessageType() MessageType { return TypeSendReminder }
func (SendMessagePayload) MessageType() MessageType { return TypeSendMessage }
func (UpdateEmergencyContactPayload) MessageType() MessageType { return TypeUpdateEmergencyContact }
func (DeleteEmergencyContactPayload) MessageType() MessageType { return TypeDeleteEmergencyContact }
func (CommandSuccessPayload) MessageType() MessageType { return TypeCommandSuccess }
func (CommandErrorPayload) MessageType() MessageType { return TypeCommandError }
func (ErrorPayload) MessageType() MessageType { return TypeError }
func (ConnectionAckPayload) MessageType() MessageType { return TypeConnectionAck }

// shapes maps each message type to a constructor for its payload.
var shapes = map[MessageType]func() Payload{
	TypeGetState:               func() Payload { return &GetStateRequest{} },
	TypeStateResponse:          func() Payload { return &StatePayload{} },
	TypeGetMedications:         func() Payload { return &GetMedicationsRequest{} },
	TypeMedicationsResponse:    func() Payload { return &MedicationsPayload{} },
	TypeUpdateMedications:      func() Payload { return &UpdateMedicationsPayload{} },
	TypeUpdateAck:              func() Payload { return &UpdateAckPayload{} },
	TypeGetAlertHistory:        func() Payload { return &GetAlertHistoryRequest{} },
	TypeAlertHistoryResponse:   func() Payload { return &AlertHistoryPayload{} },
	TypeGetHealthHistory:       func() Payload { return &GetHealthHistoryRequest{} },
	TypeHealthHistoryResponse:  func() Payload { return &HealthHistoryPayload{} },
	TypeAlertEvent:             func() Payload { return &AlertEventPayload{} },
	TypeAddMedication:          func() Payload { return &AddMedicationPayload{} },
	TypeUpdateMedication:       func() Payload { return &UpdateMedicationPayload{} },
	TypeDeleteMedication:       func() Payload { return &DeleteMedicationPayload{} },
	TypeSendReminder:           func() Payload { return &SendReminderPayload{} },
	TypeSendMessage:            func() Payload { return &SendMessagePayload{} },
	TypeUpdateEmergencyContact: func() Payload { return &UpdateEmergencyContactPayload{} },
	TypeDeleteEmergencyContact: func() Payload { return &DeleteEmergencyContactPayload{} },
	TypeCommandSuccess:         func() Payload { return &CommandSuccessPayload{} },
	TypeCommandError:           func() Payload { return &CommandErrorPayload{} },
	TypeError:                  func() Payload { return &ErrorPayload{} },
	TypeConnectionAck:          func() Payload { return &ConnectionAckPayload{} },
}
