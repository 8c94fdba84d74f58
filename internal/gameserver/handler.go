package gameserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/protocol"
)

// handleWebSocket authenticates ?token=, upgrades, registers the connection,
// pushes the initial status and resumes ticking if an action is in progress.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		slog.Debug("websocket auth rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "userID", userID, "error", err)
		return
	}

	client := NewClient(conn, userID, s.cfg.SendQueueSize, s.cfg.WriteTimeout, s.cfg.ReadTimeout)
	s.clients.Register(userID, client)
	slog.Info("client connected", "userID", userID, "conn", client.ID(), "remote", r.RemoteAddr)

	// Keep request values, drop its cancellation: the session runs until the read loop ends.
	base := context.WithoutCancel(r.Context())

	if st, ok := s.sendStatus(base, userID); ok && st.Acting() {
		s.clients.StartScheduler(userID, st.CurrentAction)
	}

	err = client.readLoop(func(payload []byte) {
		s.handleMessage(base, client, payload)
	})
	OnDisconnection(s.clients, client, err)
}

// handleMessage dispatches one inbound frame.
func (s *Server) handleMessage(base context.Context, client *Client, payload []byte) {
	msg, err := protocol.DecodeClientMessage(payload)
	if err != nil {
		slog.Debug("discarding malformed message", "userID", client.UserID(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(base, handlerTimeout)
	defer cancel()

	userID := client.UserID()
	switch msg.Action {
	case protocol.ActionStartMining:
		s.startMining(ctx, userID, msg.Ore)
	case protocol.ActionStopMining:
		s.stopMining(ctx, userID)
	case protocol.ActionGetStatus:
		s.sendStatus(ctx, userID)
	default:
		slog.Debug("unknown client action", "userID", userID, "action", msg.Action)
	}
}

func (s *Server) startMining(ctx context.Context, userID int64, oreID string) {
	if oreID == "" {
		_ = s.clients.Send(userID, protocol.NewError("ore is required"))
		return
	}

	res, err := s.processor.Start(ctx, userID, oreID)
	if err != nil {
		s.sendFailure(userID, "start mining", err)
		return
	}

	if err := s.clients.Send(userID, protocol.NewMiningStarted(res)); err != nil {
		return
	}
	s.clients.StartScheduler(userID, res.ActionID)
}

func (s *Server) stopMining(ctx context.Context, userID int64) {
	if err := s.clients.StopScheduler(ctx, userID); err != nil {
		slog.Warn("waiting for scheduler to stop", "userID", userID, "error", err)
	}

	res, err := s.processor.Stop(ctx, userID)
	if err != nil {
		s.sendFailure(userID, "stop mining", err)
		return
	}
	_ = s.clients.Send(userID, protocol.NewMiningStopped(res))
}

// sendStatus pushes a status event. ok is false when the snapshot could not be built.
func (s *Server) sendStatus(ctx context.Context, userID int64) (skill.Status, bool) {
	st, err := s.processor.Status(ctx, userID)
	if err != nil {
		s.sendFailure(userID, "load status", err)
		return skill.Status{}, false
	}
	_ = s.clients.Send(userID, protocol.NewStatusEvent(st))
	return st, true
}

// sendFailure reports err to the user: domain rejections verbatim, system failures generically.
func (s *Server) sendFailure(userID int64, op string, err error) {
	if skill.IsDomainError(err) {
		_ = s.clients.Send(userID, protocol.NewError(err.Error()))
		return
	}
	slog.Error(op+" failed", "userID", userID, "error", err)
	_ = s.clients.Send(userID, protocol.NewError("Internal error, please try again."))
}
