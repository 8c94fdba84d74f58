package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
	"github.com/udisondev/idlemine/internal/protocol"
)

var errMissingToken = errors.New("missing bearer token")

type errorResponse struct {
	Detail string `json:"detail"`
}

type miningStartRequest struct {
	OreID string `json:"ore_id"`
}

type miningStartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OreID   string `json:"ore_id"`
	OreName string `json:"ore_name"`
	Level   int    `json:"level"`
	XP      int64  `json:"xp"`
}

type miningStopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Level   int    `json:"level"`
	XP      int64  `json:"xp"`
}

type telegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type telegramAuthResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	ActiveTasks int    `json:"active_tasks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

// authenticate resolves the user from "Authorization: Bearer <token>".
func (s *Server) authenticate(r *http.Request) (int64, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return 0, errMissingToken
	}
	return s.tokens.Verify(strings.TrimSpace(token))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Connections: s.clients.Count(),
		ActiveTasks: s.clients.TaskCount(),
	})
}

func (s *Server) handleOres(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewOreList(s.processor.Catalog().List()))
}

func (s *Server) handleMiningStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	st, err := s.processor.Status(ctx, userID)
	if err != nil {
		slog.Error("load status failed", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewStatusData(st))
}

// handleMiningStart starts an action over REST. A live websocket of the same
// user gets the usual mining_started event and a scheduler.
func (s *Server) handleMiningStart(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req miningStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OreID == "" {
		writeError(w, http.StatusBadRequest, "ore_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	res, err := s.processor.Start(ctx, userID, req.OreID)
	if err != nil {
		if skill.IsDomainError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("start mining failed", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.clients.IsConnected(userID) {
		if err := s.clients.Send(userID, protocol.NewMiningStarted(res)); err == nil {
			s.clients.StartScheduler(userID, res.ActionID)
		}
	}

	writeJSON(w, http.StatusOK, miningStartResponse{
		Success: true,
		Message: res.Message,
		OreID:   res.ActionID,
		OreName: res.ActionName,
		Level:   res.Level,
		XP:      res.TotalXP,
	})
}

func (s *Server) handleMiningStop(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	if err := s.clients.StopScheduler(ctx, userID); err != nil {
		slog.Warn("waiting for scheduler to stop", "userID", userID, "error", err)
	}

	res, err := s.processor.Stop(ctx, userID)
	if err != nil {
		slog.Error("stop mining failed", "userID", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.clients.IsConnected(userID) {
		_ = s.clients.Send(userID, protocol.NewMiningStopped(res))
	}

	writeJSON(w, http.StatusOK, miningStopResponse{
		Success: true,
		Message: res.Message,
		Level:   res.Level,
		XP:      res.TotalXP,
	})
}

// handleTelegramAuth exchanges WebApp initData for a session token.
func (s *Server) handleTelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "init_data is required")
		return
	}

	user, err := s.logins.Validate(req.InitData)
	if err != nil {
		slog.Debug("telegram auth rejected", "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid authentication data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	acc, err := s.accounts.UpsertAccount(ctx, &model.Account{
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
	})
	if err != nil {
		slog.Error("upserting account", "userID", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, expires, err := s.tokens.Issue(acc.UserID)
	if err != nil {
		slog.Error("issuing token", "userID", acc.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("user authenticated", "userID", acc.UserID, "username", acc.Username)
	writeJSON(w, http.StatusOK, telegramAuthResponse{
		Token:      token,
		ExpiresAt:  expires,
		TelegramID: acc.UserID,
		Username:   acc.Username,
		FirstName:  acc.FirstName,
	})
}
