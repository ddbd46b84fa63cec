package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoGuardianID is returned by calls that need a registered guardian.
var ErrNoGuardianID = errors.New("guardian id not set, register first")

// Register creates a guardian account. On success the returned id is also
// stored on the client for later pairing calls.
func (c *Client) Register(ctx context.Context, name, phone string) (*Registration, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("register: name and phone are required")
	}

	var reg Registration
	req := RegisterRequest{Name: name, Phone: phone}
	if err := c.call(ctx, http.MethodPost, "/api/guardian/register", req, &reg); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if reg.GuardianID == "" {
		return nil, fmt.Errorf("register: response missing guardianId")
	}

	c.SetGuardianID(reg.GuardianID)
	c.logger.Info("guardian registered", "guardian_id", reg.GuardianID)
	return &reg, nil
}

// PairWithElder pairs the registered guardian with an elder using the code
// shown on the elder device.
func (c *Client) PairWithElder(ctx context.Context, code string) (*Pairing, error) {
	id := c.GuardianID()
	if id == "" {
		return nil, fmt.Errorf("pair: %w", ErrNoGuardianID)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("pair: pairing code is required")
	}

	var p Pairing
	req := PairRequest{GuardianID: id, PairingCode: code}
	if err := c.call(ctx, http.MethodPost, "/api/pair", req, &p); err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}

	c.logger.Info("paired with elder", "elder_id", p.ElderID)
	return &p, nil
}

// PairedElders lists the elders paired with the registered guardian.
func (c *Client) PairedElders(ctx context.Context) ([]PairedElder, error) {
	id := c.GuardianID()
	if id == "" {
		return nil, fmt.Errorf("get elders: %w", ErrNoGuardianID)
	}

	var elders []PairedElder
	path := "/api/guardian/" + url.PathEscape(id) + "/elders"
	if err := c.call(ctx, http.MethodGet, path, nil, &elders); err != nil {
		return nil, fmt.Errorf("get elders: %w", err)
	}
	return elders, nil
}

// Health reports whether the server answers GET /health with status "ok".
func (c *Client) Health(ctx context.Context) error {
	data, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	var resp HealthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("health: unmarshal response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("health: status %q", resp.Status)
	}
	return nil
}
