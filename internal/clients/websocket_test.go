package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loantrack/internal/domain"
	ws "loantrack/internal/transport/websocket"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func dialHub(t *testing.T, hub *ws.Hub, userID int64) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, userID)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + server.URL[4:]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Give the hub time to register the connection
	time.Sleep(100 * time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (ws.Message, map[string]interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	dataBytes, err := json.Marshal(received.Data)
	if err != nil {
		t.Fatalf("Failed to marshal data: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	return received, data
}

func TestWebSocketClient_NotifyBroadcastsLoanEvent(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	client.Notify(context.Background(), domain.InstallmentPaid{
		LoanID:            "loan-1",
		InstallmentNumber: 2,
		AmountPaid:        decimal.NewFromInt(250),
		FullyPaid:         true,
	})

	received, data := readMessage(t, conn)

	if received.Type != "installment_paid" {
		t.Errorf("Expected type 'installment.paid', got '%s'", received.Type)
	}
	if received.Channel != "loan_events" {
		t.Errorf("Expected channel 'loan_events', got '%s'", received.Channel)
	}
	if data["loan_id"] != "loan-1" {
		t.Errorf("Expected loan_id 'loan-1', got '%v'", data["loan_id"])
	}
	if data["fully_paid"] != true {
		t.Errorf("Expected fully_paid true, got '%v'", data["fully_paid"])
	}
}

func TestWebSocketClient_NotifyReachesEveryConnection(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn1 := dialHub(t, hub, 1)
	conn2 := dialHub(t, hub, 2)

	client := NewWebSocketClient(hub)
	client.Notify(context.Background(), domain.ScheduleGenerated{LoanID: "loan-9", InstallmentCount: 6})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		received, data := readMessage(t, conn)
		if received.Type != "schedule_generated" {
			t.Errorf("Expected type 'schedule.generated', got '%s'", received.Type)
		}
		if data["loan_id"] != "loan-9" {
			t.Errorf("Expected loan_id 'loan-9', got '%v'", data["loan_id"])
		}
	}
}

func TestWebSocketClient_NotifyExportProgress(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, "generating")
	if err != nil {
		t.Fatalf("Failed to notify progress: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_progress" {
		t.Errorf("Expected type 'export_progress', got '%s'", received.Type)
	}
	if received.UserID != 1 {
		t.Errorf("Expected userID 1, got %d", received.UserID)
	}
	if received.Channel != "statement_export#1" {
		t.Errorf("Expected channel 'statement_export#1', got '%s'", received.Channel)
	}
	if data["id"] != "export-123" {
		t.Errorf("Expected id 'export-123', got '%v'", data["id"])
	}
	if data["progress"].(float64) != 50.5 {
		t.Errorf("Expected progress 50.5, got %v", data["progress"])
	}
	if data["stage"] != "generating" {
		t.Errorf("Expected stage 'generating', got '%v'", data["stage"])
	}
}

func TestWebSocketClient_NotifyExportComplete(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportComplete(context.Background(), 1, "export-123", "https://example.com/file.xlsx", "statement_LN260001.xlsx")
	if err != nil {
		t.Fatalf("Failed to notify complete: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_complete" {
		t.Errorf("Expected type 'export_complete', got '%s'", received.Type)
	}
	if data["url"] != "https://example.com/file.xlsx" {
		t.Errorf("Expected url 'https://example.com/file.xlsx', got '%v'", data["url"])
	}
	if data["filename"] != "statement_LN260001.xlsx" {
		t.Errorf("Expected filename 'statement_LN260001.xlsx', got '%v'", data["filename"])
	}
	if int64(data["user_id"].(float64)) != 1 {
		t.Errorf("Expected user_id 1, got %v", data["user_id"])
	}
}

func TestWebSocketClient_NotifyExportFailed(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	conn := dialHub(t, hub, 1)
	client := NewWebSocketClient(hub)

	err := client.NotifyExportFailed(context.Background(), 1, "export-123", "upload failed")
	if err != nil {
		t.Fatalf("Failed to notify failed: %v", err)
	}

	received, data := readMessage(t, conn)

	if received.Type != "export_failed" {
		t.Errorf("Expected type 'export_failed', got '%s'", received.Type)
	}
	if data["message"] != "upload failed" {
		t.Errorf("Expected message 'upload failed', got '%v'", data["message"])
	}
}

func TestWebSocketClient_NilHub(t *testing.T) {
	client := NewWebSocketClient(nil)

	client.Notify(context.Background(), domain.TrackingRecalculated{LoanID: "loan-1"})

	if err := client.NotifyExportProgress(context.Background(), 1, "export-123", 50.5, ""); err != nil {
		t.Errorf("Should not return error with nil hub, got: %v", err)
	}
	if err := client.NotifyExportComplete(context.Background(), 1, "export-123", "https://example.com/file.xlsx", "file.xlsx"); err != nil {
		t.Errorf("Should not return error with nil hub, got: %v", err)
	}
}
