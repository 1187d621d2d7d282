package api

import "github.com/rickgao/presence-relay/internal/gateway"

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId,omitempty"`
}

// ConnectResponse is returned by POST /api/connect.
type ConnectResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// SetActivityRequest is the body of POST /api/set-activity.
type SetActivityRequest struct {
	Activity  *gateway.Activity `json:"activity"`
	Status    string            `json:"status,omitempty"`
	SessionID string            `json:"sessionId"`
}

// ClearActivityRequest is the body of POST /api/clear-activity.
type ClearActivityRequest struct {
	Status    string `json:"status,omitempty"`
	SessionID string `json:"sessionId"`
}

// SetStatusRequest is the body of POST /api/set-status.
type SetStatusRequest struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
}

// DisconnectRequest is the body of POST /api/disconnect.
type DisconnectRequest struct {
	SessionID string `json:"sessionId"`
}

// ActionResponse is returned by the presence and disconnect routes.
// Applied is true when the presence was sent to the gateway and false when
// it was stored for the next READY.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Applied bool   `json:"applied"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	gateway.Snapshot
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Version  string `json:"version"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
