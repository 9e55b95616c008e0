package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"genre-classifier/genre"
	"genre-classifier/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// SQLiteClient stores feature table rows alongside the CSV output.
type SQLiteClient struct {
	db *sql.DB
}

// connDefaults are applied unless the DSN already names the option.
var connDefaults = map[string]string{
	"_busy_timeout": "5000",
	"_journal_mode": "WAL",
}

// NewSQLiteClient opens the features database at dsn, a file path with
// optional go-sqlite3 query options. Missing parent directories are created.
func NewSQLiteClient(dsn string) (*SQLiteClient, error) {
	file, options, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(strings.TrimPrefix(file, "file:")); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", file+"?"+options.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the busy timeout covers other processes.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteClient{db: db}, nil
}

func parseDSN(dsn string) (string, url.Values, error) {
	file, rawQuery, _ := strings.Cut(dsn, "?")
	if file == "" {
		return "", nil, fmt.Errorf("sqlite dsn %q has no file", dsn)
	}
	options, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("sqlite dsn options: %w", err)
	}
	for key, value := range connDefaults {
		if !options.Has(key) {
			options.Set(key, value)
		}
	}
	return file, options, nil
}

func createTables(db *sql.DB) error {
	createFeaturesTable := `
    CREATE TABLE IF NOT EXISTS features (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL UNIQUE,
        genre TEXT NOT NULL,
        features TEXT NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_features_genre ON features(genre);
    `

	if _, err := db.Exec(createFeaturesTable); err != nil {
		return fmt.Errorf("error creating features table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreSamples upserts rows keyed by source path in a single transaction.
func (db *SQLiteClient) StoreSamples(ctx context.Context, samples []genre.LabeledSample) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO features (source, genre, features) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, sample := range samples {
		source := sample.Source
		if source == "" {
			source = fmt.Sprintf("row-%d", i)
		}
		encoded, err := json.Marshal(sample.Features)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error encoding features for %s: %w", source, err)
		}
		if _, err := stmt.ExecContext(ctx, source, sample.Label, string(encoded)); err != nil {
			tx.Rollback()
			return fmt.Errorf("error inserting %s: %w", source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// LoadSamples returns every stored row in insertion order.
func (db *SQLiteClient) LoadSamples(ctx context.Context) ([]genre.LabeledSample, error) {
	rows, err := db.db.QueryContext(ctx, "SELECT source, genre, features FROM features ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error querying features: %w", err)
	}
	defer rows.Close()

	var samples []genre.LabeledSample
	for rows.Next() {
		var (
			sample  genre.LabeledSample
			encoded string
		)
		if err := rows.Scan(&sample.Source, &sample.Label, &encoded); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &sample.Features); err != nil {
			return nil, fmt.Errorf("error decoding features for %s: %w", sample.Source, err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// CountByGenre returns the number of stored rows per genre.
func (db *SQLiteClient) CountByGenre(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, "SELECT genre, COUNT(*) FROM features GROUP BY genre")
	if err != nil {
		return nil, fmt.Errorf("error counting features: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			g string
			n int
		)
		if err := rows.Scan(&g, &n); err != nil {
			return nil, fmt.Errorf("error scanning count: %w", err)
		}
		counts[g] = n
	}
	return counts, rows.Err()
}
