package connection

import (
	"context"
	"encoding/json"

	"github.com/carewatch/guardian/internal/protocol"
)

// Requester sends a correlated request and waits for the response payload.
// *Manager implements it.
type Requester interface {
	Request(ctx context.Context, msgType protocol.MessageType, to string, payload any) (json.RawMessage, error)
}

// Do sends a request through r and decodes the response payload into T.
func Do[T any](ctx context.Context, r Requester, msgType protocol.MessageType, to string, payload any) (T, error) {
	raw, err := r.Request(ctx, msgType, to, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return protocol.DecodeAs[T](raw)
}

// GetState asks the elder for its current state.
func (m *Manager) GetState(ctx context.Context, elderID string, req protocol.GetStateRequest) (protocol.StatePayload, error) {
	return Do[protocol.StatePayload](ctx, m, protocol.TypeGetState, elderID, req)
}

// GetMedications returns the elder's medications, schedules and recent logs.
func (m *Manager) GetMedications(ctx context.Context, elderID string) (protocol.MedicationsPayload, error) {
	return Do[protocol.MedicationsPayload](ctx, m, protocol.TypeGetMedications, elderID, protocol.GetMedicationsRequest{})
}

// UpdateMedications replaces the elder's full medication list.
func (m *Manager) UpdateMedications(ctx context.Context, elderID string, p protocol.UpdateMedicationsPayload) (protocol.UpdateAckPayload, error) {
	return Do[protocol.UpdateAckPayload](ctx, m, protocol.TypeUpdateMedications, elderID, p)
}

// GetAlertHistory returns up to limit past alerts (0 lets the elder decide).
func (m *Manager) GetAlertHistory(ctx context.Context, elderID string, limit int) (protocol.AlertHistoryPayload, error) {
	return Do[protocol.AlertHistoryPayload](ctx, m, protocol.TypeGetAlertHistory, elderID, protocol.GetAlertHistoryRequest{Limit: limit})
}

// GetHealthHistory returns the check-ins of the last days days.
func (m *Manager) GetHealthHistory(ctx context.Context, elderID string, days int) (protocol.HealthHistoryPayload, error) {
	return Do[protocol.HealthHistoryPayload](ctx, m, protocol.TypeGetHealthHistory, elderID, protocol.GetHealthHistoryRequest{Days: days})
}

func (m *Manager) command(ctx context.Context, msgType protocol.MessageType, elderID string, payload any) (protocol.CommandSuccessPayload, error) {
	return Do[protocol.CommandSuccessPayload](ctx, m, msgType, elderID, payload)
}

// AddMedication adds a medication with its schedules on the elder device.
func (m *Manager) AddMedication(ctx context.Context, elderID string, p protocol.AddMedicationPayload) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeAddMedication, elderID, p)
}

// UpdateMedication changes an existing medication.
func (m *Manager) UpdateMedication(ctx context.Context, elderID string, p protocol.UpdateMedicationPayload) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeUpdateMedication, elderID, p)
}

// DeleteMedication removes a medication and its schedules.
func (m *Manager) DeleteMedication(ctx context.Context, elderID, medicationID string) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeDeleteMedication, elderID, protocol.DeleteMedicationPayload{MedicationID: medicationID})
}

// SendReminder shows a reminder on the elder device.
func (m *Manager) SendReminder(ctx context.Context, elderID string, p protocol.SendReminderPayload) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeSendReminder, elderID, p)
}

// SendMessageToElder shows a text message from the guardian.
func (m *Manager) SendMessageToElder(ctx context.Context, elderID string, p protocol.SendMessagePayload) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeSendMessage, elderID, p)
}

// UpdateEmergencyContact creates or updates an emergency contact.
func (m *Manager) UpdateEmergencyContact(ctx context.Context, elderID string, p protocol.UpdateEmergencyContactPayload) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeUpdateEmergencyContact, elderID, p)
}

// DeleteEmergencyContact removes an emergency contact.
func (m *Manager) DeleteEmergencyContact(ctx context.Context, elderID, contactID string) (protocol.CommandSuccessPayload, error) {
	return m.command(ctx, protocol.TypeDeleteEmergencyContact, elderID, protocol.DeleteEmergencyContactPayload{ContactID: contactID})
}
