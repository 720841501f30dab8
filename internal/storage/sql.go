package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/models"
)

// Supported database drivers
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Compile-time interface check
var _ Store = (*SQLStore)(nil)

// SQLStore reads corrosion readings from a SQLite or MySQL database
type SQLStore struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

// SQLConfig holds connection settings for a SQLStore
type SQLConfig struct {
	Driver          string
	DSN             string // file path for sqlite3, go-sql-driver DSN for mysql
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const readingColumns = "ID, DEVICE, TEMPERATURE, HUMIDITY, RESISTOR, CALENDAR"

// NewSQLStore opens the database and verifies it is reachable
func NewSQLStore(cfg SQLConfig, logger zerolog.Logger) (*SQLStore, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA cache_size=10000",
			"PRAGMA temp_store=MEMORY",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
			}
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
		logger: logger,
	}

	// The MySQL table is owned by the ingestion side; only a local
	// SQLite file gets its schema bootstrapped here.
	if cfg.Driver == DriverSQLite {
		if err := store.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	logger.Info().Str("driver", cfg.Driver).Msg("SQL store initialized")

	return store, nil
}

// NewSQLiteStore opens a SQLite database file
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLStore, error) {
	return NewSQLStore(SQLConfig{Driver: DriverSQLite, DSN: dbPath, MaxOpenConns: 4}, logger)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Migrate creates the corrosion table if it doesn't exist
func (s *SQLStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS corrosion (
		ID INTEGER PRIMARY KEY AUTOINCREMENT,
		DEVICE INTEGER NOT NULL,
		RESISTOR REAL NOT NULL,
		TEMPERATURE REAL NOT NULL,
		HUMIDITY REAL NOT NULL,
		CALENDAR DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_corrosion_device_calendar ON corrosion(DEVICE, CALENDAR DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// DeviceIDs returns the distinct device ids in ascending order
func (s *SQLStore) DeviceIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT DEVICE FROM corrosion ORDER BY DEVICE ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query device ids: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// LatestReading returns the most recent reading for a device
func (s *SQLStore) LatestReading(ctx context.Context, deviceID int) (*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM corrosion
		WHERE DEVICE = ?
		ORDER BY CALENDAR DESC, ID DESC
		LIMIT 1
	`

	row := s.db.QueryRowContext(ctx, query, deviceID)
	reading, err := s.scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return reading, nil
}

// RecentReadings returns up to limit of the newest readings for a device
func (s *SQLStore) RecentReadings(ctx context.Context, deviceID int, limit int) ([]*models.Reading, error) {
	return s.ReadingsPage(ctx, deviceID, 0, limit)
}

// CountReadings returns how many readings a device has
func (s *SQLStore) CountReadings(ctx context.Context, deviceID int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corrosion WHERE DEVICE = ?", deviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// ReadingsPage returns one slice of a device's readings, newest first
func (s *SQLStore) ReadingsPage(ctx context.Context, deviceID int, offset, limit int) ([]*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM corrosion
		WHERE DEVICE = ?
		ORDER BY CALENDAR DESC, ID DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, deviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanReadings(rows)
}

// Stats returns statistics about the readings table
func (s *SQLStore) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT DEVICE) FROM corrosion").
		Scan(&stats.TotalReadings, &stats.UniqueDevices)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	// If no readings, return early with zero values
	if stats.TotalReadings == 0 {
		return stats, nil
	}

	var oldestStr, newestStr string
	err = s.db.QueryRowContext(ctx, "SELECT MIN(CALENDAR), MAX(CALENDAR) FROM corrosion").
		Scan(&oldestStr, &newestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to get timestamp range: %w", err)
	}

	stats.OldestReading, err = parseTimestamp(oldestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oldest reading time: %w", err)
	}
	stats.NewestReading, err = parseTimestamp(newestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse newest reading time: %w", err)
	}

	return stats, nil
}

// scanReading is a helper to scan a row into a Reading struct
func (s *SQLStore) scanReading(row interface{ Scan(...interface{}) error }) (*models.Reading, error) {
	var r models.Reading
	var calendar string

	err := row.Scan(&r.ID, &r.DeviceID, &r.Temperature, &r.Humidity, &r.Resistor, &calendar)
	if err != nil {
		return nil, err
	}

	r.CapturedAt, err = parseTimestamp(calendar)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CALENDAR: %w", err)
	}

	return &r, nil
}

// scanReadings scans multiple rows into a slice of readings
func (s *SQLStore) scanReadings(rows *sql.Rows) ([]*models.Reading, error) {
	readings := []*models.Reading{}

	for rows.Next() {
		r, err := s.scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return readings, nil
}

// parseTimestamp tries the formats SQLite and MySQL hand back for DATETIME columns.
// Zone-less values are taken as UTC.
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02T15:04:05Z07:00",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
