package export

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultExportTTL             = 24 * time.Hour
	DefaultExportCleanupInterval = time.Hour
)

// StartCleaner removes expired exports every interval until ctx is done.
func (e *Exporter) StartCleaner(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		ttl = DefaultExportTTL
	}
	if interval <= 0 {
		interval = DefaultExportCleanupInterval
	}
	go e.cleanupLoop(ctx, ttl, interval)
}

func (e *Exporter) cleanupLoop(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.CleanupExpired(ttl); err != nil {
				log.Printf("cleanup exports error: %v", err)
			}
		}
	}
}

// CleanupExpired deletes export files older than ttl and reports how many were removed.
func (e *Exporter) CleanupExpired(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, err
	}
	cutoff := e.now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove export %s failed: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
