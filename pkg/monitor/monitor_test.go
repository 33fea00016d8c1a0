package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"radaerx/pkg/decoder"
)

func testSnapshot() any {
	return decoder.Snapshot{Running: true, Synced: true, SNRdB: 7.5, FreqOffsetHz: -12, OutputLevel: 0.25}
}

func TestStatusEndpoint(t *testing.T) {
	s := New(testSnapshot, 0, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap decoder.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Running || !snap.Synced || snap.SNRdB != 7.5 || snap.FreqOffsetHz != -12 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestWebSocketPush(t *testing.T) {
	s := New(testSnapshot, 5*time.Millisecond, slog.New(slog.DiscardHandler))

	srv := httptest.NewServer(http.HandlerFunc(s.handleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 3; i++ {
		var snap decoder.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if snap.OutputLevel != 0.25 {
			t.Errorf("push %d: level = %f, want 0.25", i, snap.OutputLevel)
		}
	}
}

func TestServerShutdown(t *testing.T) {
	s := New(testSnapshot, 0, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
