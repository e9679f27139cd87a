package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// KeyDefaultThreshold config key of the threshold saved from the web UI
const KeyDefaultThreshold = "default_threshold"

// ErrConfigNotFound the key has never been set
var ErrConfigNotFound = errors.New("config key not found")

// Setting one persisted key/value
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetSetting returns a setting, ErrConfigNotFound when it was never saved.
func (s *Store) GetSetting(key string) (Setting, error) {
	st := Setting{Key: key}
	var updated sql.NullTime
	err := s.db.QueryRow("SELECT value, updated_at FROM config WHERE key = ?", key).Scan(&st.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: %s", ErrConfigNotFound, key)
	}
	if err != nil {
		return st, fmt.Errorf("read %s: %w", key, err)
	}
	st.UpdatedAt = updated.Time
	return st, nil
}

// PutSetting upserts a setting
func (s *Store) PutSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// ListSettings returns every setting ordered by key
func (s *Store) ListSettings() ([]Setting, error) {
	rows, err := s.db.Query("SELECT key, value, updated_at FROM config ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var (
			st      Setting
			updated sql.NullTime
		)
		if err := rows.Scan(&st.Key, &st.Value, &updated); err != nil {
			return nil, err
		}
		st.UpdatedAt = updated.Time
		out = append(out, st)
	}
	return out, rows.Err()
}

// DefaultThreshold returns the saved default threshold, or fallback when none is saved.
// A saved value that no longer parses is an error rather than a silent fallback.
func (s *Store) DefaultThreshold(fallback float64) (float64, error) {
	st, err := s.GetSetting(KeyDefaultThreshold)
	if errors.Is(err, ErrConfigNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	t, err := strconv.ParseFloat(st.Value, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s %q: %w", KeyDefaultThreshold, st.Value, err)
	}
	return t, nil
}

// SetDefaultThreshold saves the default threshold.
func (s *Store) SetDefaultThreshold(t float64) error {
	return s.PutSetting(KeyDefaultThreshold, strconv.FormatFloat(t, 'g', -1, 64))
}
