package audit

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the audit_logs schema.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "audit-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE audit_logs (
			id          TEXT PRIMARY KEY,
			action      TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id   TEXT,
			user_id     TEXT,
			source      TEXT NOT NULL,
			details     TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_audit_logs_action ON audit_logs(action);
		CREATE INDEX idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
		CREATE INDEX idx_audit_logs_created ON audit_logs(created_at);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying audit schema: %v", err)
	}

	return db
}

// ─── Create Tests ──────────────────────────────────────────────────

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	entry := &AuditLog{
		Action:     "create",
		EntityType: "device",
		EntityID:   "sensor_lr",
		UserID:     "usr-1",
		Source:     "api",
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("Create() should assign an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Create() should assign CreatedAt")
	}
}

func TestCreate_KeepsExplicitID(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	entry := &AuditLog{
		ID:         "aud-fixed",
		Action:     "delete",
		EntityType: "rule",
		Source:     "api",
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID != "aud-fixed" {
		t.Errorf("ID = %q, want aud-fixed", entry.ID)
	}
}

func TestCreate_NullableFields(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	// Anonymous request, no entity, no details.
	entry := &AuditLog{
		Action:     "command",
		EntityType: "device",
		Source:     "api",
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(result.Logs))
	}

	got := result.Logs[0]
	if got.EntityID != "" {
		t.Errorf("EntityID = %q, want empty", got.EntityID)
	}
	if got.UserID != "" {
		t.Errorf("UserID = %q, want empty", got.UserID)
	}
	if got.Details != nil {
		t.Errorf("Details = %v, want nil", got.Details)
	}
}

func TestCreate_DetailsRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	entry := &AuditLog{
		Action:     "command",
		EntityType: "device",
		EntityID:   "ac_lr",
		Source:     "api",
		Details: map[string]any{
			"command": "cool",
			"topic":   "/h/dev/ac_lr/set",
		},
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	got := result.Logs[0]
	if got.Details["command"] != "cool" {
		t.Errorf("details command = %v, want cool", got.Details["command"])
	}
	if got.Details["topic"] != "/h/dev/ac_lr/set" {
		t.Errorf("details topic = %v, want /h/dev/ac_lr/set", got.Details["topic"])
	}
}

// ─── List Tests ────────────────────────────────────────────────────

func TestList_Empty(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 0 {
		t.Errorf("total = %d, want 0", result.Total)
	}
	if result.Logs == nil {
		t.Error("logs should be an empty slice, not nil")
	}
	if result.Limit != 50 {
		t.Errorf("limit = %d, want default 50", result.Limit)
	}
}

func TestList_Filters(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	seed := []*AuditLog{
		{Action: "create", EntityType: "device", EntityID: "sensor_lr", Source: "api"},
		{Action: "create", EntityType: "rule", EntityID: "rule-1", Source: "api"},
		{Action: "delete", EntityType: "device", EntityID: "sensor_lr", Source: "api"},
		{Action: "command", EntityType: "device", EntityID: "ac_lr", Source: "api"},
	}
	for _, e := range seed {
		if err := repo.Create(context.Background(), e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"no filter", Filter{}, 4},
		{"by action", Filter{Action: "create"}, 2},
		{"by entity type", Filter{EntityType: "device"}, 3},
		{"by entity id", Filter{EntityID: "sensor_lr"}, 2},
		{"combined", Filter{Action: "create", EntityType: "device"}, 1},
		{"no match", Filter{Action: "login"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", result.Total, tt.wantTotal)
			}
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i, action := range []string{"create", "update", "delete"} {
		entry := &AuditLog{
			Action:     action,
			EntityType: "device",
			EntityID:   "sensor_lr",
			Source:     "api",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(result.Logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3", len(result.Logs))
	}
	if result.Logs[0].Action != "delete" {
		t.Errorf("logs[0].Action = %q, want delete (newest first)", result.Logs[0].Action)
	}
	if result.Logs[2].Action != "create" {
		t.Errorf("logs[2].Action = %q, want create (oldest last)", result.Logs[2].Action)
	}
}

func TestList_Pagination(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := &AuditLog{
			Action:     "update",
			EntityType: "rule",
			EntityID:   "rule-1",
			Source:     "api",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 5 {
		t.Errorf("total = %d, want 5", result.Total)
	}
	if len(result.Logs) != 2 {
		t.Errorf("len(logs) = %d, want 2", len(result.Logs))
	}
	if result.Offset != 2 {
		t.Errorf("offset = %d, want 2", result.Offset)
	}
}

func TestList_LimitClamped(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	result, err := repo.List(context.Background(), Filter{Limit: 9999})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("limit = %d, want clamped to 200", result.Limit)
	}

	result, err = repo.List(context.Background(), Filter{Limit: -3, Offset: -7})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 50 {
		t.Errorf("limit = %d, want default 50", result.Limit)
	}
	if result.Offset != 0 {
		t.Errorf("offset = %d, want 0", result.Offset)
	}
}
