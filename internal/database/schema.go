package database

// SQL schemas for all ClickHouse tables

const (
	// MeasurementWindowsTableSQL creates the measurement_windows table, one row per received document
	MeasurementWindowsTableSQL = `
		CREATE TABLE IF NOT EXISTS measurement_windows (
			window_id String,
			received_at DateTime64(3),
			subject_id String,
			test_type String,
			date String,
			time String,
			location String,
			schema LowCardinality(String),
			sensors UInt8,
			samples UInt32
		) ENGINE = MergeTree()
		ORDER BY (subject_id, received_at)
		PARTITION BY toYYYYMM(received_at)
	`

	// MeasurementSamplesTableSQL creates the measurement_samples table, one row per sensor sample
	MeasurementSamplesTableSQL = `
		CREATE TABLE IF NOT EXISTS measurement_samples (
			window_id String,
			received_at DateTime64(3),
			sensor LowCardinality(String),
			seq UInt32,
			sample_key String,
			ax Int16,
			ay Int16,
			az Int16,
			gx Int16,
			gy Int16,
			gz Int16,
			offset_ms Nullable(Int64)
		) ENGINE = MergeTree()
		ORDER BY (window_id, sensor, seq)
		PARTITION BY toYYYYMM(received_at)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		MeasurementWindowsTableSQL,
		MeasurementSamplesTableSQL,
	}
}
