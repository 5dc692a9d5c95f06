package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks per-file processing totals across builds.
type BuildMetrics struct {
	TotalFiles      int64
	SuccessfulFiles int64
	FailedFiles     int64
	CachedFiles     int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordFile records one processed file.
func (bm *BuildMetrics) RecordFile(d time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalFiles++
	bm.TotalDuration += d
	if err != nil {
		bm.FailedFiles++
	} else {
		bm.SuccessfulFiles++
	}
	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalFiles)
}

// RecordCacheHit counts a file whose output came from the cache.
func (bm *BuildMetrics) RecordCacheHit() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.CachedFiles++
}

// GetSnapshot returns a copy of the current totals.
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return BuildMetrics{
		TotalFiles:      bm.TotalFiles,
		SuccessfulFiles: bm.SuccessfulFiles,
		FailedFiles:     bm.FailedFiles,
		CachedFiles:     bm.CachedFiles,
		AverageDuration: bm.AverageDuration,
		TotalDuration:   bm.TotalDuration,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalFiles = 0
	bm.SuccessfulFiles = 0
	bm.FailedFiles = 0
	bm.CachedFiles = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalFiles == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulFiles) / float64(bm.TotalFiles) * 100.0
}
