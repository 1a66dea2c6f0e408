// Package observability provides OpenTelemetry metrics and structured logging
// for the embedding pipeline.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameEmbeddingJobsEnqueued   = "storyweave_embedding_jobs_enqueued_total"
	MetricNameEmbeddingProviderErrors = "storyweave_embedding_provider_errors_total"
	MetricNameEmbeddingRefreshes      = "storyweave_embedding_refresh_total"
	MetricNameEmbeddingWorkerErrors   = "storyweave_embedding_worker_errors_total"
	MetricNameEmbeddingRefreshLatency = "storyweave_embedding_refresh_duration_seconds"
	MetricNameSearchLatency           = "storyweave_search_duration_seconds"
)

// Attribute keys.
const (
	AttrReason = "reason"
	AttrStatus = "status"
)

// AllowedProviderReasons for storyweave_embedding_provider_errors_total.
var AllowedProviderReasons = map[string]bool{
	"enqueue_failed": true,
	"embed_failed":   true,
}

// AllowedWorkerReasons for storyweave_embedding_worker_errors_total.
var AllowedWorkerReasons = map[string]bool{
	"get_message_failed": true,
	"refresh_failed":     true,
	"delete_failed":      true,
}

// AllowedRefreshStatuses for storyweave_embedding_refresh_total and its duration histogram.
var AllowedRefreshStatuses = map[string]bool{
	"success":       true,
	"skipped_query": true,
	"skipped_empty": true,
	"failed":        true,
}

// AllowedSearchStatuses for storyweave_search_duration_seconds.
var AllowedSearchStatuses = map[string]bool{
	"success":     true,
	"empty_query": true,
	"degraded":    true,
	"failed":      true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
