package wordgame

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrWordSetNotFound is returned when an archived word set does not exist
var ErrWordSetNotFound = errors.New("word set not found")

// DB archives generated word sets for listing and inspection. Scores are never stored.
type DB struct {
	db *sql.DB
}

// WordSetRecord is the metadata row of an archived word set
type WordSetRecord struct {
	ID             string     `json:"id"`
	SourceLanguage Language   `json:"sourceLanguage"`
	TargetLanguage Language   `json:"targetLanguage"`
	Difficulty     Difficulty `json:"difficulty"`
	DateSeed       string     `json:"dateSeed"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// OpenDB opens the sqlite database at dbPath
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS word_sets (
			id TEXT PRIMARY KEY,
			source_language TEXT NOT NULL,
			target_language TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			date_seed TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS word_set_questions (
			word_set_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			word TEXT NOT NULL,
			options TEXT NOT NULL,
			correct TEXT NOT NULL,
			PRIMARY KEY (word_set_id, question_num),
			FOREIGN KEY (word_set_id) REFERENCES word_sets(id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveWordSet stores a validated set and returns its new ID
func (db *DB) SaveWordSet(ctx context.Context, req GameSetupRequest, set QuestionSet) (string, error) {
	id := uuid.NewString()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO word_sets (id, source_language, target_language, difficulty, date_seed, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, string(req.SourceLanguage), string(req.TargetLanguage), string(req.Difficulty), req.DateSeed, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create word set: %w", err)
	}

	for i, q := range set {
		optionsJSON, err := OptionsToJSON(q.Options)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO word_set_questions (word_set_id, question_num, word, options, correct) VALUES (?, ?, ?, ?, ?)",
			id, i+1, q.Prompt, optionsJSON, q.Answer,
		)
		if err != nil {
			return "", fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit word set: %w", err)
	}
	return id, nil
}

// GetWordSet loads an archived set and its questions in their stored order
func (db *DB) GetWordSet(ctx context.Context, id string) (*WordSetRecord, QuestionSet, error) {
	var rec WordSetRecord
	err := db.db.QueryRowContext(ctx,
		"SELECT id, source_language, target_language, difficulty, date_seed, created_at FROM word_sets WHERE id = ?",
		id,
	).Scan(&rec.ID, &rec.SourceLanguage, &rec.TargetLanguage, &rec.Difficulty, &rec.DateSeed, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrWordSetNotFound, id)
		}
		return nil, nil, fmt.Errorf("failed to get word set: %w", err)
	}

	rows, err := db.db.QueryContext(ctx,
		"SELECT word, options, correct FROM word_set_questions WHERE word_set_id = ? ORDER BY question_num",
		id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var set QuestionSet
	for rows.Next() {
		var (
			q           Question
			optionsJSON string
		)
		if err := rows.Scan(&q.Prompt, &optionsJSON, &q.Answer); err != nil {
			return nil, nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Options, err = JSONToOptions(optionsJSON); err != nil {
			return nil, nil, err
		}
		set = append(set, q)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return &rec, set, nil
}

// ListWordSets returns archived sets, newest first; limit <= 0 means all
func (db *DB) ListWordSets(ctx context.Context, limit int) ([]WordSetRecord, error) {
	query := "SELECT id, source_language, target_language, difficulty, date_seed, created_at FROM word_sets ORDER BY created_at DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list word sets: %w", err)
	}
	defer rows.Close()

	var records []WordSetRecord
	for rows.Next() {
		var rec WordSetRecord
		if err := rows.Scan(&rec.ID, &rec.SourceLanguage, &rec.TargetLanguage, &rec.Difficulty, &rec.DateSeed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan word set: %w", err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating word sets: %w", err)
	}
	return records, nil
}

// OptionsToJSON converts an options slice to its stored JSON form
func OptionsToJSON(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// JSONToOptions converts a stored JSON string back to an options slice
func JSONToOptions(optionsJSON string) ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}
