package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/presence-relay/internal/gateway"
	"github.com/rickgao/presence-relay/internal/registry"
)

const (
	msgSessionRequired = "sessionId is required"
	msgSessionNotFound = "session not found"
)

func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if !bind(c, &req) {
		return
	}
	if req.Token == "" {
		abort(c, http.StatusBadRequest, "token is required")
		return
	}

	id, err := s.registry.Connect(req.SessionID, req.Token)
	if err != nil {
		s.logger.Error("connect failed", "error", err)
		abort(c, http.StatusInternalServerError, "connect failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, ConnectResponse{
		Success:   true,
		Message:   "connection started",
		SessionID: id,
	})
}

func (s *Server) handleSetActivity(c *gin.Context) {
	var req SetActivityRequest
	if !bind(c, &req) {
		return
	}
	session, ok := s.lookup(c, req.SessionID)
	if !ok {
		return
	}

	status, ok := parseStatus(c, req.Status)
	if !ok {
		return
	}
	if req.Activity != nil {
		if err := req.Activity.Validate(); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	applied := session.UpdatePresence(gateway.Presence{Status: status, Activity: req.Activity})
	respond(c, applied, "activity set", "activity saved, will be applied once connected")
}

func (s *Server) handleClearActivity(c *gin.Context) {
	var req ClearActivityRequest
	if !bind(c, &req) {
		return
	}
	session, ok := s.lookup(c, req.SessionID)
	if !ok {
		return
	}

	status, ok := parseStatus(c, req.Status)
	if !ok {
		return
	}

	applied := session.UpdatePresence(gateway.Presence{Status: status})
	respond(c, applied, "activity cleared", "activity clear saved, will be applied once connected")
}

func (s *Server) handleSetStatus(c *gin.Context) {
	var req SetStatusRequest
	if !bind(c, &req) {
		return
	}
	if req.SessionID == "" {
		abort(c, http.StatusBadRequest, msgSessionRequired)
		return
	}
	if req.Status == "" {
		abort(c, http.StatusBadRequest, "status is required")
		return
	}
	session, ok := s.lookup(c, req.SessionID)
	if !ok {
		return
	}

	status, ok := parseStatus(c, req.Status)
	if !ok {
		return
	}

	p := session.Presence()
	p.Status = status
	applied := session.UpdatePresence(p)
	respond(c, applied, fmt.Sprintf("status changed to %s", status), "status saved, will be applied once connected")
}

func (s *Server) handleStatus(c *gin.Context) {
	id := c.Query("sessionId")
	if id == "" {
		abort(c, http.StatusBadRequest, msgSessionRequired)
		return
	}

	session, err := s.registry.Get(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"isConnected": false,
			"message":     msgSessionNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, session.GetStatus())
}

// handleDisconnect succeeds for unknown sessions too.
func (s *Server) handleDisconnect(c *gin.Context) {
	var req DisconnectRequest
	if !bind(c, &req) {
		return
	}
	if req.SessionID == "" {
		abort(c, http.StatusBadRequest, msgSessionRequired)
		return
	}

	if err := s.registry.Disconnect(req.SessionID); err != nil && !errors.Is(err, registry.ErrSessionNotFound) {
		abort(c, http.StatusInternalServerError, "disconnect failed")
		return
	}

	c.JSON(http.StatusOK, ActionResponse{Success: true, Message: "disconnected"})
}

// lookup resolves the session id of a request, writing the error response
// when it cannot.
func (s *Server) lookup(c *gin.Context, id string) (*gateway.Session, bool) {
	if id == "" {
		abort(c, http.StatusBadRequest, msgSessionRequired)
		return nil, false
	}
	session, err := s.registry.Get(id)
	if err != nil {
		abort(c, http.StatusNotFound, msgSessionNotFound)
		return nil, false
	}
	return session, true
}

// parseStatus validates a status field; empty means online.
func parseStatus(c *gin.Context, raw string) (gateway.PresenceStatus, bool) {
	if raw == "" {
		return gateway.StatusOnline, true
	}
	status, err := gateway.ParsePresenceStatus(raw)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return status, true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func respond(c *gin.Context, applied bool, sent, queued string) {
	msg := sent
	if !applied {
		msg = queued
	}
	c.JSON(http.StatusOK, ActionResponse{Success: true, Message: msg, Applied: applied})
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: msg})
}
