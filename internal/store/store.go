package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examgen/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps the history of generation runs.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		num_groups INTEGER NOT NULL,
		questions_per_group INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		created_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS run_pools (
		run_id TEXT NOT NULL,
		pool_id TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		num_questions INTEGER NOT NULL,
		PRIMARY KEY (run_id, pool_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_questions (
		run_id TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		pool_id TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		PRIMARY KEY (run_id, group_id, position),
		UNIQUE (run_id, pool_id, question_index),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun records the start of a generation run and returns its id.
// A new uuid is used when id is empty.
func (s *Store) CreateRun(id string, cfg model.GenerateConfig) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, test_id, seed, num_groups, questions_per_group, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, cfg.TestID, fmt.Sprint(cfg.Seed), cfg.NumGroups, cfg.QuestionsPerGroup, model.RunInProgress, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecordPools stores the pool files a run was generated from.
func (s *Store) RecordPools(runID string, sources []model.PoolSource) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, src := range sources {
		_, err := tx.Exec(
			`INSERT INTO run_pools (run_id, pool_id, sha256, num_questions) VALUES (?, ?, ?, ?)`,
			runID, src.PoolID, src.SHA256, src.NumQuestions,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordGroup stores the questions chosen for one group.
func (s *Store) RecordGroup(runID string, g model.Group) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for pos, id := range g.QuestionIDs() {
		_, err := tx.Exec(
			`INSERT INTO run_questions (run_id, group_id, position, pool_id, question_index) VALUES (?, ?, ?, ?, ?)`,
			runID, g.ID, pos+1, id.PoolID, id.Index,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FinishRun sets the final status of a run.
func (s *Store) FinishRun(runID string, status model.RunStatus) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), runID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(runID string) (model.Run, error) {
	return scanRun(s.db.QueryRow(
		`SELECT id, test_id, seed, num_groups, questions_per_group, status, created_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	))
}

// ListRuns returns runs newest first. An empty testID lists all tests.
func (s *Store) ListRuns(testID string) ([]model.Run, error) {
	query := `SELECT id, test_id, seed, num_groups, questions_per_group, status, created_at, finished_at FROM runs`
	var args []any
	if testID != "" {
		query += ` WHERE test_id = ?`
		args = append(args, testID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunPools returns the pool files recorded for a run, by pool id.
func (s *Store) GetRunPools(runID string) ([]model.PoolSource, error) {
	rows, err := s.db.Query(
		`SELECT pool_id, sha256, num_questions FROM run_pools WHERE run_id = ? ORDER BY pool_id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []model.PoolSource
	for rows.Next() {
		var src model.PoolSource
		if err := rows.Scan(&src.PoolID, &src.SHA256, &src.NumQuestions); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// GetRunGroups returns the recorded groups of a run with questions in presentation order.
func (s *Store) GetRunGroups(runID string) ([]model.RunGroup, error) {
	rows, err := s.db.Query(
		`SELECT group_id, pool_id, question_index FROM run_questions
		 WHERE run_id = ? ORDER BY group_id, position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []model.RunGroup
	for rows.Next() {
		var (
			groupID int
			id      model.QuestionID
		)
		if err := rows.Scan(&groupID, &id.PoolID, &id.Index); err != nil {
			return nil, err
		}
		if len(groups) == 0 || groups[len(groups)-1].GroupID != groupID {
			groups = append(groups, model.RunGroup{GroupID: groupID})
		}
		last := &groups[len(groups)-1]
		last.QuestionIDs = append(last.QuestionIDs, id)
	}
	return groups, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		r      model.Run
		seed   string
		finish sql.NullTime
	)
	err := row.Scan(&r.ID, &r.TestID, &seed, &r.NumGroups, &r.QuestionsPerGroup, &r.Status, &r.CreatedAt, &finish)
	if err != nil {
		return r, err
	}
	if _, err := fmt.Sscan(seed, &r.Seed); err != nil {
		return r, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	if finish.Valid {
		r.FinishedAt = &finish.Time
	}
	return r, nil
}

// Recorder adapts a Store to an allocation sink for one run.
type Recorder struct {
	store *Store
	runID string
}

// Recorder returns a sink that stores every group under runID.
func (s *Store) Recorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

func (r *Recorder) WriteGroup(g model.Group) error {
	if err := r.store.RecordGroup(r.runID, g); err != nil {
		return fmt.Errorf("record group %d: %w", g.ID, err)
	}
	return nil
}
