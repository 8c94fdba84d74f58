package gameserver

import (
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
)

// OnDisconnection cleans up after a websocket read loop ends.
//
// Flow:
// 1. If client is still the user's transport → detach it (cancels the tick task)
// 2. If it was already replaced by a reconnect → leave the new connection alone
// 3. Close the socket either way
//
// The skill row keeps current_action, so a reconnect resumes where the user left off.
func OnDisconnection(cm *ClientManager, client *Client, cause error) {
	replaced := !cm.Detach(client.UserID(), client)
	_ = client.Close()

	if isExpectedClose(cause) {
		slog.Info("client disconnected",
			"userID", client.UserID(),
			"conn", client.ID(),
			"replaced", replaced)
		return
	}
	slog.Warn("client connection lost",
		"userID", client.UserID(),
		"conn", client.ID(),
		"replaced", replaced,
		"error", cause)
}

func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
