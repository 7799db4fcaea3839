package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ffexec/internal/executor"
	"ffexec/internal/logging"
	"ffexec/internal/services"
)

const (
	// maxStoredOutput caps the output tail persisted per execution.
	maxStoredOutput = 8 << 10
	// timeLayout is fixed-width so timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one recorded execution.
type Entry struct {
	ID         string
	Argv       []string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	ExitCode   int
	Output     string
	Error      string
}

// Duration returns the recorded run time.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store is the SQLite-backed execution journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a completed execution. Recording the same ID twice replaces
// the earlier row.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	argv, err := json.Marshal(entry.Argv)
	if err != nil {
		return fmt.Errorf("marshal argv: %w", err)
	}
	output := entry.Output
	if len(output) > maxStoredOutput {
		output = output[len(output)-maxStoredOutput:]
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO executions (
            id, argv_json, started_at, finished_at, outcome, exit_code, output_tail, error_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(argv),
		entry.StartedAt.UTC().Format(timeLayout),
		entry.FinishedAt.UTC().Format(timeLayout),
		entry.Outcome,
		entry.ExitCode,
		nullableString(output),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Get returns the execution with id, or an error wrapping services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "journal", "get", "execution "+id, nil)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns up to limit executions, newest first. A non-positive limit
// returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := selectColumns + " ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return entries, nil
}

// Prune deletes executions that started before cutoff and returns the number
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE started_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune executions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

// Recorder returns an executor.Recorder that writes every result to the
// journal. Write failures are logged, not returned.
func (s *Store) Recorder(logger *slog.Logger) executor.Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "journal")
	return executor.RecorderFunc(func(result executor.CommandResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Record(ctx, EntryFromResult(result)); err != nil {
			logging.WarnWithContext(logger, "failed to record execution", "journal_record_failed",
				logging.String(logging.FieldExecutionID, result.ID),
				logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
				logging.Error(err))
		}
	})
}

// EntryFromResult converts a delivered result into a journal entry.
func EntryFromResult(result executor.CommandResult) Entry {
	entry := Entry{
		ID:         result.ID,
		Argv:       result.Command.Argv(),
		StartedAt:  result.Started,
		FinishedAt: result.Finished,
		Outcome:    string(result.Outcome),
		ExitCode:   result.ExitCode,
		Output:     result.Output,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	return entry
}

const selectColumns = `SELECT id, argv_json, started_at, finished_at, outcome, exit_code, output_tail, error_message FROM executions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry              Entry
		argvJSON           string
		started, finished  string
		output, errMessage sql.NullString
	)
	if err := row.Scan(&entry.ID, &argvJSON, &started, &finished, &entry.Outcome, &entry.ExitCode, &output, &errMessage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}
	if err := json.Unmarshal([]byte(argvJSON), &entry.Argv); err != nil {
		return nil, fmt.Errorf("decode argv: %w", err)
	}
	var err error
	if entry.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if entry.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	entry.Output = output.String
	entry.Error = errMessage.String
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
