package relayclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rickgao/presence-relay/internal/api"
	"github.com/rickgao/presence-relay/internal/gateway"
)

// Health returns the relay's health report.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.call(ctx, http.MethodGet, "/health", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Connect starts a gateway session for token. An empty sessionID lets the
// relay pick one; the id in use is returned. Only a connect under an
// explicit id is retried: each blind attempt would start a new session.
func (c *Client) Connect(ctx context.Context, token, sessionID string) (string, error) {
	var resp api.ConnectResponse
	req := api.ConnectRequest{Token: token, SessionID: sessionID}
	if err := c.call(ctx, http.MethodPost, "/api/connect", nil, req, &resp, sessionID != ""); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// SetActivity sets the status and activity of a session. An empty status
// means online.
func (c *Client) SetActivity(ctx context.Context, sessionID string, status gateway.PresenceStatus, activity *gateway.Activity) (*api.ActionResponse, error) {
	req := api.SetActivityRequest{
		SessionID: sessionID,
		Status:    string(status),
		Activity:  activity,
	}
	return c.action(ctx, "/api/set-activity", req)
}

// ClearActivity removes the activity of a session.
func (c *Client) ClearActivity(ctx context.Context, sessionID string, status gateway.PresenceStatus) (*api.ActionResponse, error) {
	req := api.ClearActivityRequest{SessionID: sessionID, Status: string(status)}
	return c.action(ctx, "/api/clear-activity", req)
}

// SetStatus changes the status of a session and keeps its activity.
func (c *Client) SetStatus(ctx context.Context, sessionID string, status gateway.PresenceStatus) (*api.ActionResponse, error) {
	req := api.SetStatusRequest{SessionID: sessionID, Status: string(status)}
	return c.action(ctx, "/api/set-status", req)
}

// Disconnect stops a session. Unknown sessions are not an error.
func (c *Client) Disconnect(ctx context.Context, sessionID string) error {
	_, err := c.action(ctx, "/api/disconnect", api.DisconnectRequest{SessionID: sessionID})
	return err
}

// Status returns the snapshot of a session. Message is set and the
// snapshot is zero when the relay does not know the session.
func (c *Client) Status(ctx context.Context, sessionID string) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	query := url.Values{"sessionId": {sessionID}}
	if err := c.call(ctx, http.MethodGet, "/api/status", query, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// action posts to a session-scoped endpoint. These set absolute state on
// a named session, so repeating one is harmless.
func (c *Client) action(ctx context.Context, path string, req any) (*api.ActionResponse, error) {
	var resp api.ActionResponse
	if err := c.call(ctx, http.MethodPost, path, nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}
