package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-score-service/internal/domain"
)

func TestWebSocketStatsFlow(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/stats?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial snapshot: no attempts yet.
	initial := readStats(t, conn)
	if initial.TotalAttempts != 0 {
		t.Fatalf("expected empty initial stats, got %+v", initial)
	}

	// Submit over REST; the feed should push a refreshed snapshot.
	resp := doJSON(t, server, http.MethodPost, "/quizzes/1/submit", "u1",
		map[string]any{"answers": map[string][]int64{"1": {5}, "2": {7, 8}}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed with %d", resp.StatusCode)
	}

	update := readStats(t, conn)
	if update.TotalAttempts != 1 || update.HighestScore != 100.0 {
		t.Fatalf("expected refreshed stats, got %+v", update)
	}
}

func TestWebSocketStatsRequiresIdentity(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/stats"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func readStats(t *testing.T, conn *websocket.Conn) domain.UserStatistics {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Type != "stats" {
		t.Fatalf("expected stats message, got %s", msg.Type)
	}
	var stats domain.UserStatistics
	if err := json.Unmarshal(msg.Payload, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	return stats
}
