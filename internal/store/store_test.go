package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"settings", "exports", "goose_db_version"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", version)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := New(dbPath)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if err := first.Settings().Set("k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	first.Close()

	second, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	if v, err := second.Settings().Get("k"); err != nil || v != "v" {
		t.Errorf("Get() after reopen = %q, %v", v, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(SettingView, "camera"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(SettingView, "board"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, err := repo.Get(SettingView); err != nil || v != "board" {
		t.Errorf("Get() = %q, %v; want board", v, err)
	}

	if err := repo.Delete(SettingView); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(SettingView); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSettingsRepository_JSON(t *testing.T) {
	repo := newTestStore(t).Settings()

	type brush struct {
		Color string `json:"color"`
		Size  int    `json:"size"`
	}

	if err := repo.SetJSON(SettingBrush, brush{Color: "#EC4899", Size: 9}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var got brush
	if err := repo.GetJSON(SettingBrush, &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Color != "#EC4899" || got.Size != 9 {
		t.Errorf("GetJSON() = %+v", got)
	}

	if err := repo.Set("broken", "{"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.GetJSON("broken", &got); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON(broken) error = %v, want decode error", err)
	}
}

func TestExportRepository_CreateAndGet(t *testing.T) {
	repo := newTestStore(t).Exports()

	rec := &ExportRecord{
		ID:        "exp-1",
		Filename:  "handraw-1700000000000.png",
		Format:    "png",
		Width:     1280,
		Height:    720,
		Thumbnail: "handraw-1700000000000.thumb.png",
	}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("exp-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Filename != rec.Filename || got.Width != 1280 || got.Height != 720 || got.Thumbnail != rec.Thumbnail {
		t.Errorf("GetByID() = %+v, want %+v", got, rec)
	}

	if _, err := repo.GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(nope) error = %v, want ErrNotFound", err)
	}
}

func TestExportRepository_RejectsUnknownFormat(t *testing.T) {
	repo := newTestStore(t).Exports()

	err := repo.Create(&ExportRecord{ID: "x", Filename: "x.gif", Format: "gif", Width: 1, Height: 1})
	if err == nil {
		t.Error("format outside png/pdf should violate the check constraint")
	}
}

func TestExportRepository_ListNewestFirst(t *testing.T) {
	repo := newTestStore(t).Exports()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		err := repo.Create(&ExportRecord{
			ID:        id,
			Filename:  id + ".png",
			Format:    "png",
			Width:     10,
			Height:    10,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("List() order = %v", ids(all))
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d records", len(limited))
	}

	if err := repo.Delete("b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func ids(records []*ExportRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
