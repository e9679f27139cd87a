package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"swsmreport/internal/observability"
)

// downloadTTL how long a generated report stays downloadable
const downloadTTL = 10 * time.Minute

type reportDownload struct {
	filePath  string
	fileName  string
	expiresAt time.Time
}

// downloadStore one-time download tokens for generated reports
type downloadStore struct {
	dir     string
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu    sync.Mutex
	items map[string]reportDownload
}

func newDownloadStore(dir string, clock clockwork.Clock, metrics *observability.Metrics) *downloadStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &downloadStore{
		dir:     dir,
		clock:   clock,
		metrics: metrics,
		items:   make(map[string]reportDownload),
	}
}

// put writes the report to disk and returns its download token.
func (s *downloadStore) put(runID, fileName string, data []byte, ttl time.Duration) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	filePath := filepath.Join(s.dir, fmt.Sprintf("swsm_report_%s.xlsx", runID))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purgeExpiredLocked(now)

	token := newRandomToken(24)
	s.items[token] = reportDownload{
		filePath:  filePath,
		fileName:  fileName,
		expiresAt: now.Add(ttl),
	}
	s.updateGaugeLocked()
	return token, nil
}

// take returns the download and forgets the token.
func (s *downloadStore) take(token string) (reportDownload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(s.clock.Now())

	v, ok := s.items[token]
	if !ok {
		return reportDownload{}, false
	}
	delete(s.items, token)
	s.updateGaugeLocked()
	return v, true
}

func (s *downloadStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.items {
		_ = os.Remove(v.filePath)
		delete(s.items, k)
	}
	s.updateGaugeLocked()
}

func (s *downloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			_ = os.Remove(v.filePath)
			delete(s.items, k)
		}
	}
}

func (s *downloadStore) updateGaugeLocked() {
	if s.metrics != nil {
		s.metrics.DownloadsPending.Set(float64(len(s.items)))
	}
}

func newRandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
