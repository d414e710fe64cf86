package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Infof("Database: connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}
	if err := db.InitSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Info("Database: schema initialized")
	return nil
}

// WindowRow is one archived measurement window
type WindowRow struct {
	WindowID   string
	ReceivedAt time.Time
	SubjectID  string
	TestType   string
	Date       string
	Time       string
	Location   string
	Schema     string
	Sensors    uint8
	Samples    uint32
}

// SampleRow is one archived sensor sample
type SampleRow struct {
	Sensor   string
	Seq      uint32
	Key      string
	Ax       int16
	Ay       int16
	Az       int16
	Gx       int16
	Gy       int16
	Gz       int16
	OffsetMs *int64
}

// FlattenDocument turns a document into the rows SaveWindow inserts
func FlattenDocument(windowID string, receivedAt time.Time, schema models.Schema, doc *models.Document) (WindowRow, []SampleRow) {
	window := WindowRow{
		WindowID:   windowID,
		ReceivedAt: receivedAt,
		SubjectID:  doc.Metadata.SubjectID,
		TestType:   doc.Metadata.TestType,
		Date:       doc.Metadata.Date,
		Time:       doc.Metadata.Time,
		Location:   doc.Metadata.Location,
		Schema:     schema.Name,
		Sensors:    uint8(len(doc.Series)),
	}

	var samples []SampleRow
	for _, series := range doc.Series {
		for i, s := range series.Entries() {
			samples = append(samples, SampleRow{
				Sensor:   series.Sensor,
				Seq:      uint32(i),
				Key:      s.Key,
				Ax:       s.Record.Ax,
				Ay:       s.Record.Ay,
				Az:       s.Record.Az,
				Gx:       s.Record.Gx,
				Gy:       s.Record.Gy,
				Gz:       s.Record.Gz,
				OffsetMs: s.Record.Timestamp,
			})
		}
	}
	window.Samples = uint32(len(samples))
	return window, samples
}

// SaveWindow archives a received document: one window row and a batch of sample rows
func (db *ClickHouseDB) SaveWindow(ctx context.Context, windowID string, receivedAt time.Time, schema models.Schema, doc *models.Document) error {
	window, samples := FlattenDocument(windowID, receivedAt, schema, doc)

	query := `
		INSERT INTO measurement_windows (window_id, received_at, subject_id, test_type, date, time, location, schema, sensors, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := db.conn.Exec(ctx, query,
		window.WindowID,
		window.ReceivedAt,
		window.SubjectID,
		window.TestType,
		window.Date,
		window.Time,
		window.Location,
		window.Schema,
		window.Sensors,
		window.Samples,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement window: %w", err)
	}

	if len(samples) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, "INSERT INTO measurement_samples")
	if err != nil {
		return fmt.Errorf("failed to prepare sample batch: %w", err)
	}
	for _, s := range samples {
		err := batch.Append(
			window.WindowID,
			window.ReceivedAt,
			s.Sensor,
			s.Seq,
			s.Key,
			s.Ax, s.Ay, s.Az,
			s.Gx, s.Gy, s.Gz,
			s.OffsetMs,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append sample %s/%s: %w", s.Sensor, s.Key, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert measurement samples: %w", err)
	}

	log.Infof("Database: archived window %s (%d samples)", window.WindowID, window.Samples)
	return nil
}

// CountSamples returns the number of archived samples of a window
func (db *ClickHouseDB) CountSamples(ctx context.Context, windowID string) (uint64, error) {
	var count uint64
	query := `SELECT count() FROM measurement_samples WHERE window_id = ?`
	if err := db.conn.QueryRow(ctx, query, windowID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples of %s: %w", windowID, err)
	}
	return count, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
