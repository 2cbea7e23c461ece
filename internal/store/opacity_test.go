package store_test

import (
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/protocol"
	"agentrelay/internal/router"
	"agentrelay/internal/store"
)

const opacityProbePayload = "the-quick-brown-fox-opacity-probe"

// TestChatPayloadNeverPersistedInAnyTextColumn runs a full chat.request /
// chat.response exchange through the Router against a real sqlite-backed
// Store, then scans every text-ish column of every table for the payload.
// Chat content is routed entirely in memory and must never reach the
// database; this guards that invariant against a future change that
// starts logging or persisting frame bodies.
func TestChatPayloadNeverPersistedInAnyTextColumn(t *testing.T) {
	db, err := store.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	st := store.New(db)

	rt := router.New(router.Config{
		OfflineQueueMax: 10,
		OfflineTTL:      time.Minute,
		IdleTimeout:     time.Minute,
		PingInterval:    time.Minute,
		MsgMaxBytes:     32768,
	}, st, slog.New(slog.NewTextHandler(io.Discard, nil)))

	agent := rt.AdmitAgent("a1")
	client := rt.AdmitClient("a1", "d1")
	<-client.Out() // initial presence snapshot

	now := time.Now()
	if apiErr := rt.RouteChatRequest(client, protocol.ChatRequest{
		Type:      protocol.TypeChatRequest,
		RequestID: "r1",
		AgentID:   "a1",
		Text:      opacityProbePayload,
	}, now); apiErr != nil {
		t.Fatalf("route chat request: %v", apiErr)
	}
	<-client.Out() // message_sent ack
	<-agent.Out()  // forwarded chat.request

	if apiErr := rt.RouteChatResponse(agent, protocol.ChatResponse{
		Type:      protocol.TypeChatResponse,
		RequestID: "r1",
		AgentID:   "a1",
		Reply:     opacityProbePayload,
	}, now); apiErr != nil {
		t.Fatalf("route chat response: %v", apiErr)
	}
	<-client.Out() // fanned-out chat.response

	assertNoColumnContains(t, db, opacityProbePayload)
}

func assertNoColumnContains(t *testing.T, db *gorm.DB, needle string) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying sql.DB: %v", err)
	}

	tables := queryStrings(t, sqlDB, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	for _, table := range tables {
		for _, col := range textColumns(t, sqlDB, table) {
			for _, value := range queryStrings(t, sqlDB, "SELECT "+col+" FROM "+table+" WHERE "+col+" IS NOT NULL") {
				if strings.Contains(value, needle) {
					t.Fatalf("chat payload leaked into %s.%s", table, col)
				}
			}
		}
	}
}

// textColumns returns the TEXT/VARCHAR/CHAR columns of table, per
// PRAGMA table_info.
func textColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info(%s): %v", table, err)
		}
		upper := strings.ToUpper(colType)
		if strings.Contains(upper, "TEXT") || strings.Contains(upper, "CHAR") {
			cols = append(cols, name)
		}
	}
	return cols
}

// queryStrings runs query (expected to select exactly one column) and
// returns every non-null value as a string.
func queryStrings(t *testing.T, db *sql.DB, query string) []string {
	t.Helper()
	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan %q: %v", query, err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out
}
