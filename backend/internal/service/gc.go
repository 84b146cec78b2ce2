package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/itchan-dev/blog/shared/logger"
)

// MediaGarbageCollector reconciles the upload tree with image references in
// the database. Unreferenced files are removed once older than the safety
// threshold; references to missing files are only reported.
type MediaGarbageCollector struct {
	storage         GCStorage
	mediaStorage    GCMediaStorage
	safetyThreshold time.Duration

	mu               sync.Mutex
	lastCleanupStats CleanupStats
}

// CleanupStats describes the last reconciliation run.
type CleanupStats struct {
	RunAt            time.Time
	FilesScanned     int
	OrphanedFiles    int
	FilesDeleted     int
	DanglingRefs     int
	DanglingRefPaths []string
	DurationMs       int64
	Errors           []string
}

type GCStorage interface {
	GetAllImagePaths(ctx context.Context) ([]string, error)
}

type GCMediaStorage interface {
	WalkFiles() ([]string, error)
	GetFileModTime(relPath string) (time.Time, error)
	Delete(relPath string) error
}

// NewMediaGarbageCollector creates a collector. safetyThreshold is the minimum
// age of an unreferenced file before it is removed, so uploads whose row is
// not committed yet survive.
func NewMediaGarbageCollector(storage GCStorage, mediaStorage GCMediaStorage, safetyThreshold time.Duration) *MediaGarbageCollector {
	return &MediaGarbageCollector{
		storage:         storage,
		mediaStorage:    mediaStorage,
		safetyThreshold: safetyThreshold,
	}
}

// StartBackgroundCleanup runs RunCleanup every interval until ctx is done.
func (gc *MediaGarbageCollector) StartBackgroundCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started media garbage collector", "interval", interval, "safety_threshold", gc.safetyThreshold)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.RunCleanup(ctx); err != nil {
					logger.Log.Error("media gc run failed", "error", err)
					continue
				}
				stats := gc.GetLastCleanupStats()
				logger.Log.Info("media gc completed",
					"scanned", stats.FilesScanned,
					"orphans", stats.OrphanedFiles,
					"deleted", stats.FilesDeleted,
					"dangling_refs", stats.DanglingRefs,
					"duration_ms", stats.DurationMs,
					"errors", len(stats.Errors))
			case <-ctx.Done():
				logger.Log.Info("media garbage collector stopped")
				return
			}
		}
	}()
}

// RunCleanup executes a single reconciliation pass.
func (gc *MediaGarbageCollector) RunCleanup(ctx context.Context) error {
	startTime := time.Now()
	stats := CleanupStats{
		RunAt:  startTime,
		Errors: []string{},
	}

	// References are read before the walk: a file written after this point is
	// young and skipped by the threshold.
	dbPaths, err := gc.storage.GetAllImagePaths(ctx)
	if err != nil {
		return fmt.Errorf("failed to list image references: %w", err)
	}
	referenced := make(map[string]bool, len(dbPaths))
	for _, path := range dbPaths {
		referenced[filepath.ToSlash(path)] = true
	}

	fsPaths, err := gc.mediaStorage.WalkFiles()
	if err != nil {
		return fmt.Errorf("failed to walk upload directory: %w", err)
	}
	stats.FilesScanned = len(fsPaths)

	onDisk := make(map[string]bool, len(fsPaths))
	for _, fsPath := range fsPaths {
		normalizedPath := filepath.ToSlash(fsPath)
		onDisk[normalizedPath] = true
		if referenced[normalizedPath] {
			continue
		}

		modTime, err := gc.mediaStorage.GetFileModTime(fsPath)
		if err != nil {
			stats.Errors = append(stats.Errors, "stat error: "+fsPath+": "+err.Error())
			continue
		}
		if time.Since(modTime) < gc.safetyThreshold {
			continue
		}

		stats.OrphanedFiles++
		if err := gc.mediaStorage.Delete(fsPath); err != nil {
			stats.Errors = append(stats.Errors, "delete error: "+fsPath+": "+err.Error())
			continue
		}
		stats.FilesDeleted++
		logger.Log.Debug("removed orphaned image", "path", fsPath)
	}

	for path := range referenced {
		if !onDisk[path] {
			stats.DanglingRefs++
			stats.DanglingRefPaths = append(stats.DanglingRefPaths, path)
			logger.Log.Warn("image reference has no file on disk", "path", path)
		}
	}

	stats.DurationMs = time.Since(startTime).Milliseconds()

	mediaGCFilesDeletedTotal.Add(float64(stats.FilesDeleted))
	mediaGCDanglingReferences.Set(float64(stats.DanglingRefs))
	mediaGCLastRunTimestamp.Set(float64(startTime.Unix()))

	gc.mu.Lock()
	gc.lastCleanupStats = stats
	gc.mu.Unlock()

	return nil
}

// GetLastCleanupStats returns statistics from the last cleanup run.
func (gc *MediaGarbageCollector) GetLastCleanupStats() CleanupStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.lastCleanupStats
}
