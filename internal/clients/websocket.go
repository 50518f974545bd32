package clients

import (
	"context"
	"fmt"

	"loantrack/internal/domain"
	ws "loantrack/internal/transport/websocket"
)

// WebSocketClient pushes loan lifecycle events and statement export
// notifications into the hub. Delivery is fire-and-forget: the hub drops
// messages when a consumer's buffer is full, and the core never waits.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// Notify broadcasts a core event (schedule generated, installment paid,
// payment reversed, tracking recalculated) to every connected consumer.
func (c *WebSocketClient) Notify(ctx context.Context, ev domain.Event) {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastAll(&ws.Message{
		Type:    ev.EventType(),
		Channel: "loan_events",
		Data:    ev,
	})
}

func (c *WebSocketClient) NotifyExportProgress(
	ctx context.Context,
	userID int64,
	exportID string,
	progress float64,
	stage string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("statement_export#%d", userID)
	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	message := &ws.Message{
		Type:    "export_progress",
		Channel: channel,
		Data:    data,
	}

	c.hub.Broadcast(userID, message)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(
	ctx context.Context,
	userID int64,
	exportID string,
	url string,
	filename string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("statement_export#%d", userID)
	message := &ws.Message{
		Type:    "export_complete",
		Channel: channel,
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyExportFailed notifies a user that an export failed with the provided error message.
func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("statement_export#%d", userID)
	message := &ws.Message{
		Type:    "export_failed",
		Channel: channel,
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}
