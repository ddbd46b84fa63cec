package api

import "encoding/json"

// envelope wraps every JSON response from the guardian API.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RegisterRequest is the body of POST /api/guardian/register.
type RegisterRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Registration is returned by POST /api/guardian/register.
type Registration struct {
	GuardianID string `json:"guardianId"`
	Token      string `json:"token"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
}

// PairRequest is the body of POST /api/pair.
type PairRequest struct {
	GuardianID  string `json:"guardianId"`
	PairingCode string `json:"pairingCode"`
}

// Pairing is returned by POST /api/pair.
type Pairing struct {
	ElderID  string `json:"elderId"`
	PairedAt string `json:"pairedAt"`
}

// PairedElder is one entry of GET /api/guardian/{id}/elders.
type PairedElder struct {
	ElderID  string `json:"elderId"`
	PairedAt string `json:"pairedAt"`
	IsOnline bool   `json:"isOnline"`
}

// HealthResponse from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
