package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"ensemblecast/internal/ensemble"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testDataset() ensemble.Dataset {
	return ensemble.Dataset{
		"gfs":   {Times: []string{"t0", "t1"}, Temperature: []float64{50, 52}},
		"ecmwf": {Error: "API request failed"},
	}
}

func TestSaveAndLoadDataset(t *testing.T) {
	store := setupTestStore(t)
	models := []string{"gfs", "ecmwf"}

	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, models, testDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	ds, fetchedAt, err := store.LatestDataset("hourly", 39.7392, -104.9903, 7, models, time.Hour)
	if err != nil {
		t.Fatalf("LatestDataset: %v", err)
	}
	if ds == nil {
		t.Fatal("expected cache hit")
	}
	if fetchedAt.IsZero() {
		t.Error("fetchedAt should be set")
	}
	if len(ds["gfs"].Temperature) != 2 || ds["gfs"].Temperature[1] != 52 {
		t.Errorf("gfs temperature = %v", ds["gfs"].Temperature)
	}
	if ds["ecmwf"].Valid() {
		t.Error("error record should survive the roundtrip")
	}
}

func TestLatestDatasetMiss(t *testing.T) {
	store := setupTestStore(t)

	tests := []struct {
		name string
		kind string
		lat  float64
		days int
	}{
		{"different kind", "daily", 39.7392, 7},
		{"different coordinates", "hourly", 40.0, 7},
		{"different days", "hourly", 39.7392, 3},
	}

	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, []string{"gfs"}, testDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _, err := store.LatestDataset(tt.kind, tt.lat, -104.9903, tt.days, []string{"gfs"}, time.Hour)
			if err != nil {
				t.Fatalf("LatestDataset: %v", err)
			}
			if ds != nil {
				t.Error("expected cache miss")
			}
		})
	}
}

func TestLatestDatasetStale(t *testing.T) {
	store := setupTestStore(t)
	models := []string{"gfs"}

	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, models, testDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	ds, _, err := store.LatestDataset("hourly", 39.7392, -104.9903, 7, models, 0)
	if err != nil {
		t.Fatalf("LatestDataset: %v", err)
	}
	if ds != nil {
		t.Error("zero max age should treat every entry as stale")
	}
}

func TestSaveDatasetReplaces(t *testing.T) {
	store := setupTestStore(t)
	models := []string{"gfs"}

	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, models, testDataset()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	updated := ensemble.Dataset{
		"gfs": {Times: []string{"t0"}, Temperature: []float64{70}},
	}
	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, models, updated); err != nil {
		t.Fatalf("second save: %v", err)
	}

	ds, _, err := store.LatestDataset("hourly", 39.7392, -104.9903, 7, models, time.Hour)
	if err != nil {
		t.Fatalf("LatestDataset: %v", err)
	}
	if len(ds["gfs"].Temperature) != 1 || ds["gfs"].Temperature[0] != 70 {
		t.Errorf("gfs temperature = %v, want [70]", ds["gfs"].Temperature)
	}
}

func TestPrune(t *testing.T) {
	store := setupTestStore(t)

	if err := store.SaveDataset("hourly", 39.7392, -104.9903, 7, []string{"gfs"}, testDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	removed, err := store.Prune(0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}
