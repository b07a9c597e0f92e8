package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/metrics"
	"pm10cast/internal/models"
)

// Supported drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// ErrRunNotFound is returned for unknown prediction run ids
var ErrRunNotFound = errors.New("prediction run not found")

// DB represents the database connection
type DB struct {
	conn   *sql.DB
	driver string
}

// NewDB creates a new database connection and initializes the schema
// mysql dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
// sqlite dsn: a file path, or ":memory:"
func NewDB(driver, dsn string) (*DB, error) {
	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// Every sqlite connection to ":memory:" is a separate database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{conn: conn, driver: driver}

	// Initialize schema
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables. Neither driver accepts several
// statements in one Exec.
func (db *DB) initSchema() error {
	statements := mysqlSchema
	if db.driver == DriverSQLite {
		statements = sqliteSchema
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date DATE NOT NULL,
		site VARCHAR(255) NOT NULL DEFAULT '',
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		concentration DOUBLE NOT NULL,
		INDEX idx_readings_date (date),
		INDEX idx_readings_site (site)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS models (
		model_key VARCHAR(255) PRIMARY KEY,
		data LONGBLOB NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS prediction_runs (
		id VARCHAR(36) PRIMARY KEY,
		model_key VARCHAR(255) NOT NULL,
		range_start INT NOT NULL,
		range_stop INT NOT NULL,
		mode VARCHAR(20) NOT NULL,
		mse DOUBLE NOT NULL,
		rmse DOUBLE NOT NULL,
		mae DOUBLE NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_prediction_runs_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS prediction_rows (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		date DATE NOT NULL,
		predicted DOUBLE NOT NULL,
		actual DOUBLE NOT NULL,
		diff DOUBLE NOT NULL,
		INDEX idx_prediction_rows_run (run_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		concentration REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_date ON readings (date)`,

	`CREATE TABLE IF NOT EXISTS models (
		model_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS prediction_runs (
		id TEXT PRIMARY KEY,
		model_key TEXT NOT NULL,
		range_start INTEGER NOT NULL,
		range_stop INTEGER NOT NULL,
		mode TEXT NOT NULL,
		mse REAL NOT NULL,
		rmse REAL NOT NULL,
		mae REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prediction_runs_created ON prediction_runs (created_at)`,

	`CREATE TABLE IF NOT EXISTS prediction_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		date TEXT NOT NULL,
		predicted REAL NOT NULL,
		actual REAL NOT NULL,
		diff REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prediction_rows_run ON prediction_rows (run_id)`,
}

// Driver returns the name of the sql driver in use
func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) recordStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// sqliteTimeLayout is fixed width so text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// dbTime scans DATE/DATETIME columns from either driver: mysql hands back
// time.Time with parseTime=true, sqlite hands back text.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// dateValue and timeValue format bind arguments per driver
func (db *DB) dateValue(t time.Time) any {
	if db.driver == DriverSQLite {
		return t.Format("2006-01-02")
	}
	return t
}

func (db *DB) timeValue(t time.Time) any {
	if db.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

// InsertReadings stores readings in one transaction, keeping their order
func (db *DB) InsertReadings(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	defer db.recordStats()

	queryStart := time.Now()
	_, err := db.writeReadings(ctx, readings, false)
	metrics.RecordDBQuery("INSERT", "readings", time.Since(queryStart), err)
	if err != nil {
		return err
	}

	log.Infof("Stored %d readings", len(readings))
	return nil
}

// ReplaceReadings deletes every stored reading and inserts readings in the
// same transaction. If any insert fails the previous readings are kept.
func (db *DB) ReplaceReadings(ctx context.Context, readings []models.Reading) (int64, error) {
	defer db.recordStats()

	queryStart := time.Now()
	deleted, err := db.writeReadings(ctx, readings, true)
	metrics.RecordDBQuery("REPLACE", "readings", time.Since(queryStart), err)
	if err != nil {
		return 0, err
	}

	log.Infof("Replaced %d stored readings with %d", deleted, len(readings))
	return deleted, nil
}

func (db *DB) writeReadings(ctx context.Context, readings []models.Reading, replace bool) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	var deleted int64
	if replace {
		res, err := tx.ExecContext(ctx, `DELETE FROM readings`)
		if err != nil {
			return 0, fmt.Errorf("failed to delete readings: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("failed to count deleted readings: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO readings (date, site, latitude, longitude, concentration) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if math.IsNaN(r.Concentration) || math.IsInf(r.Concentration, 0) {
			return 0, fmt.Errorf("reading for %s at %s has non-finite concentration %v", r.Site, r.Date.Format("2006-01-02"), r.Concentration)
		}
		if _, err := stmt.ExecContext(ctx, db.dateValue(r.Date), r.Site, r.Latitude, r.Longitude, r.Concentration); err != nil {
			return 0, fmt.Errorf("failed to insert reading for %s at %s: %w", r.Site, r.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

// DeleteReadings empties the readings table
func (db *DB) DeleteReadings(ctx context.Context) (int64, error) {
	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, `DELETE FROM readings`)
	metrics.RecordDBQuery("DELETE", "readings", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}
	return res.RowsAffected()
}

// Readings returns every stored reading in insertion order
func (db *DB) Readings(ctx context.Context) ([]models.Reading, error) {
	queryStart := time.Now()
	readings, err := db.readings(ctx)
	metrics.RecordDBQuery("SELECT", "readings", time.Since(queryStart), err)
	if err != nil {
		return nil, &forecast.DataLoadError{Source: "database", Err: err}
	}
	return readings, nil
}

func (db *DB) readings(ctx context.Context) ([]models.Reading, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, date, site, latitude, longitude, concentration FROM readings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var date dbTime
		if err := rows.Scan(&r.ID, &date, &r.Site, &r.Latitude, &r.Longitude, &r.Concentration); err != nil {
			return nil, err
		}
		r.Date = date.Time
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// SaveModel stores an encoded model, replacing any previous one under key
func (db *DB) SaveModel(ctx context.Context, key string, data []byte) error {
	query := `INSERT INTO models (model_key, data, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`
	if db.driver == DriverSQLite {
		query = `INSERT INTO models (model_key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(model_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	}

	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query, key, data, db.timeValue(time.Now()))
	metrics.RecordDBQuery("UPSERT", "models", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to save model %s: %w", key, err)
	}
	return nil
}

// LoadModel returns the encoded model stored under key
func (db *DB) LoadModel(ctx context.Context, key string) ([]byte, error) {
	var data []byte

	queryStart := time.Now()
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM models WHERE model_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("SELECT", "models", time.Since(queryStart), nil)
		return nil, &forecast.ModelNotFoundError{Key: key}
	}
	metrics.RecordDBQuery("SELECT", "models", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", key, err)
	}
	return data, nil
}

// SavePredictionRun stores a run and its rows in one transaction
func (db *DB) SavePredictionRun(ctx context.Context, run *models.PredictionRun) error {
	defer db.recordStats()

	queryStart := time.Now()
	err := db.savePredictionRun(ctx, run)
	metrics.RecordDBQuery("INSERT", "prediction_runs", time.Since(queryStart), err)
	return err
}

func (db *DB) savePredictionRun(ctx context.Context, run *models.PredictionRun) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prediction_runs (id, model_key, range_start, range_stop, mode, mse, rmse, mae, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelKey, run.Start, run.Stop, run.Mode, run.Metrics.MSE, run.Metrics.RMSE, run.Metrics.MAE, db.timeValue(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert prediction run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prediction_rows (run_id, date, predicted, actual, diff) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range run.Rows {
		if _, err := stmt.ExecContext(ctx, run.ID, db.dateValue(row.Date), row.Predicted, row.Actual, row.Diff); err != nil {
			return fmt.Errorf("failed to insert prediction row for run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPredictionRuns returns the most recent runs without their rows
func (db *DB) GetPredictionRuns(ctx context.Context, limit int) ([]models.PredictionRun, error) {
	query := `SELECT id, model_key, range_start, range_stop, mode, mse, rmse, mae, created_at FROM prediction_runs ORDER BY created_at DESC LIMIT ?`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, limit)
	metrics.RecordDBQuery("SELECT", "prediction_runs", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PredictionRun
	for rows.Next() {
		var r models.PredictionRun
		var created dbTime
		if err := rows.Scan(&r.ID, &r.ModelKey, &r.Start, &r.Stop, &r.Mode, &r.Metrics.MSE, &r.Metrics.RMSE, &r.Metrics.MAE, &created); err != nil {
			return nil, fmt.Errorf("failed to scan prediction run: %w", err)
		}
		r.CreatedAt = created.Time
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction runs: %w", err)
	}
	return runs, nil
}

// GetPredictionRun returns one run with its rows
func (db *DB) GetPredictionRun(ctx context.Context, id string) (*models.PredictionRun, error) {
	var r models.PredictionRun
	var created dbTime

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, model_key, range_start, range_stop, mode, mse, rmse, mae, created_at FROM prediction_runs WHERE id = ?`, id).
		Scan(&r.ID, &r.ModelKey, &r.Start, &r.Stop, &r.Mode, &r.Metrics.MSE, &r.Metrics.RMSE, &r.Metrics.MAE, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prediction run: %w", err)
	}
	r.CreatedAt = created.Time

	rows, err := db.conn.QueryContext(ctx, `SELECT date, predicted, actual, diff FROM prediction_rows WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row models.PredictionRow
		var date dbTime
		if err := rows.Scan(&date, &row.Predicted, &row.Actual, &row.Diff); err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		row.Date = date.Time
		r.Rows = append(r.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction rows: %w", err)
	}
	return &r, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
