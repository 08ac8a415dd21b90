// Package store caches fetched forecast datasets in SQLite so repeated
// analyses of the same location don't hammer the upstream API.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"ensemblecast/internal/ensemble"
	"ensemblecast/internal/metrics"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CachedDataset is one cache row: a full ensemble dataset plus the request
// parameters that produced it.
type CachedDataset struct {
	ID        int64
	Kind      string // "hourly" or "daily"
	Latitude  float64
	Longitude float64
	Days      int
	Models    string // comma-separated request order
	FetchedAt time.Time
	Payload   []byte
}

// Coordinates are keyed at ~100m resolution; Open-Meteo snaps to its own
// grid anyway.
func coordKey(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// SaveDataset stores a fetched dataset, replacing any previous entry for the
// same request parameters.
func (s *Store) SaveDataset(kind string, lat, lon float64, days int, models []string, ds ensemble.Dataset) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO forecast_cache (kind, latitude, longitude, days, models, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, latitude, longitude, days, models) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, kind, coordKey(lat), coordKey(lon), days, strings.Join(models, ","), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}

	metrics.DatasetsCached.WithLabelValues(kind).Inc()
	return nil
}

// LatestDataset returns the cached dataset for the request parameters if one
// exists and is younger than maxAge. A cache miss returns (nil, zero, nil).
func (s *Store) LatestDataset(kind string, lat, lon float64, days int, models []string, maxAge time.Duration) (ensemble.Dataset, time.Time, error) {
	row := s.db.QueryRow(`
		SELECT payload, fetched_at
		FROM forecast_cache
		WHERE kind = ? AND latitude = ? AND longitude = ? AND days = ? AND models = ?
	`, kind, coordKey(lat), coordKey(lon), days, strings.Join(models, ","))

	var payload string
	var fetchedAt time.Time
	err := row.Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load dataset: %w", err)
	}

	if time.Since(fetchedAt) > maxAge {
		return nil, time.Time{}, nil
	}

	ds, err := ensemble.DecodeDataset([]byte(payload))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached dataset: %w", err)
	}
	return ds, fetchedAt, nil
}

// Prune deletes cache entries older than maxAge, returning the number
// removed.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM forecast_cache WHERE fetched_at < ?`, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}
