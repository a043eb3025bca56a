package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.drv == nil || s.drv.DB() == nil {
		t.Fatal("expected non-nil driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.drv.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here. It is tested with file-based DBs.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestWALOnFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.drv.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestAutoMigrationCreatesTable(t *testing.T) {
	s := openTestStore(t)
	db := s.drv.DB()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='generation_events'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if name != "generation_events" {
		t.Errorf("table name = %q, want 'generation_events'", name)
	}

	for _, idx := range GenerationEventsTable.Indexes {
		var got string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx.Name,
		).Scan(&got)
		if err != nil {
			t.Errorf("index %s: %v", idx.Name, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := migrate(context.Background(), s.drv); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.EventRepo().AppendLLMRequest(ctx, LLMRequestEventData{Purpose: "text:story", Success: true}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.EventRepo().QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Purpose != "text:story" || !got[0].Success {
		t.Errorf("events after reopen = %+v", got)
	}
}

func TestAppendAndQueryEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Kind: KindText, Purpose: "text:worksheet", Provider: "gemini", Model: "gemini-2.0-flash", InputTokens: 10, OutputTokens: 200, LatencyMs: 900, Success: true, RequestBody: "[user]\nworksheet"},
		{Kind: KindImage, Purpose: "image", Provider: "gemini", Model: "imagen-3.0-generate-002", LatencyMs: 3000, Success: true},
		{Kind: KindText, Purpose: "text:quiz", Provider: "gemini", Model: "gemini-2.0-flash", LatencyMs: 50, Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	// Newest first.
	if all[0].Purpose != "text:quiz" || all[2].Purpose != "text:worksheet" {
		t.Errorf("unexpected order: %q, %q, %q", all[0].Purpose, all[1].Purpose, all[2].Purpose)
	}
	if all[0].Success || all[0].ErrorMessage != "rate limited" {
		t.Errorf("failure fields not round-tripped: %+v", all[0])
	}
	if all[2].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	images, err := repo.QueryLLMEvents(ctx, QueryOpts{Kind: KindImage})
	if err != nil {
		t.Fatalf("query images: %v", err)
	}
	if len(images) != 1 || images[0].Model != "imagen-3.0-generate-002" {
		t.Errorf("kind filter returned %+v", images)
	}

	limited, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit returned %d events, want 2", len(limited))
	}

	byPurpose, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "text:worksheet"})
	if err != nil {
		t.Fatalf("query purpose: %v", err)
	}
	if len(byPurpose) != 1 || byPurpose[0].RequestBody != "[user]\nworksheet" {
		t.Errorf("purpose filter returned %+v", byPurpose)
	}
}

func TestGetLLMEvent(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{Purpose: "text:story", Model: "m", Success: true}); err != nil {
		t.Fatalf("append: %v", err)
	}
	all, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 1})
	if err != nil || len(all) != 1 {
		t.Fatalf("query: %v (%d)", err, len(all))
	}

	got, err := repo.GetLLMEvent(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Purpose != "text:story" {
		t.Fatalf("get returned %+v", got)
	}
	if got.Kind != KindText {
		t.Errorf("kind = %q, want default %q", got.Kind, KindText)
	}

	missing, err := repo.GetLLMEvent(ctx, 99999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing id, got %+v", missing)
	}
}

func TestQueryTimeWindow(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := base
	repo := &eventRepo{drv: s.drv, now: func() time.Time { return tick }}
	ctx := context.Background()

	for i := range 3 {
		tick = base.Add(time.Duration(i) * time.Hour)
		if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{Purpose: "text:quiz"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{From: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("from filter returned %d events, want 2", len(got))
	}
}

func TestUsageAggregates(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	data := []LLMRequestEventData{
		{Purpose: "text:quiz", Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 50, LatencyMs: 100},
		{Purpose: "text:quiz", Model: "gpt-4o-mini", InputTokens: 200, OutputTokens: 150, LatencyMs: 300},
		{Purpose: "image", Kind: KindImage, Model: "dall-e-3", LatencyMs: 2000},
	}
	for _, d := range data {
		if err := repo.AppendLLMRequest(ctx, d); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("got %d purposes, want 2", len(byPurpose))
	}
	// Ordered by purpose name.
	quiz := byPurpose[1]
	if quiz.Purpose != "text:quiz" || quiz.Calls != 2 || quiz.InputTokens != 300 || quiz.OutputTokens != 200 || quiz.AvgLatencyMs != 200 {
		t.Errorf("quiz stats = %+v", quiz)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("got %d models, want 2", len(byModel))
	}
	if byModel[1].Model != "gpt-4o-mini" || byModel[1].Calls != 2 {
		t.Errorf("model usage = %+v", byModel[1])
	}
}

func TestNopEventRepo(t *testing.T) {
	var repo EventRepo = NopEventRepo{}
	ctx := context.Background()
	if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{}); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil || len(events) != 0 {
		t.Errorf("query = %v, %v", events, err)
	}
}

func TestDefaultDBPathFromEnv(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "history.db")
	t.Setenv("CONTENTGEN_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDefaultDBPathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONTENTGEN_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	want := filepath.Join(dir, "contentgen", "history.db")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
