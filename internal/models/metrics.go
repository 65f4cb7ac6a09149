package models

import "time"

// SystemMetrics is a point-in-time summary of instrumentation counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ImportRowsSucceeded      uint64    `json:"import_rows_succeeded"`
	ImportRowsFailed         uint64    `json:"import_rows_failed"`
	NarrativeCalls           uint64    `json:"narrative_calls"`
	NarrativeFailures        uint64    `json:"narrative_failures"`
	ReportCardsPublished     uint64    `json:"report_cards_published"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
