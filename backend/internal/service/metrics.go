package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"

	cleanupOpReplace   = "replace"
	cleanupOpDelete    = "delete"
	cleanupOpDirectory = "directory"
)

var (
	imageUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_image_updates_total",
			Help: "Total number of post image updates by result",
		},
		[]string{"result"},
	)

	imageCleanupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_image_cleanup_failures_total",
			Help: "Best-effort image file cleanups that failed and left an orphan behind",
		},
		[]string{"op"},
	)

	mediaGCFilesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_media_gc_files_deleted_total",
			Help: "Orphaned image files removed by the media sweep",
		},
	)

	mediaGCDanglingReferences = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blog_media_gc_dangling_references",
			Help: "Image references without a file on disk found by the last sweep",
		},
	)

	mediaGCLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blog_media_gc_last_run_timestamp_seconds",
			Help: "Unix time of the last completed media sweep",
		},
	)
)
