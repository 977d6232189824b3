package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"segue/internal/config"
)

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "sessions.db"))
}

// OpenPath opens the session database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewSession inserts a pending session for a track pair.
func (s *Store) NewSession(ctx context.Context, trackAPath, trackBPath, bundleJSON, preferencesJSON string) (*Session, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	sessionUUID := uuid.NewString()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            uuid, track_a_path, track_b_path, bundle_json, preferences_json,
            status, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionUUID,
		trackAPath,
		trackBPath,
		nullableString(bundleJSON),
		nullableString(preferencesJSON),
		StatusPending,
		0.0,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a session by row identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetByUUID fetches a session by public identifier.
func (s *Store) GetByUUID(ctx context.Context, sessionUUID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE uuid = ?`, sessionUUID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by uuid: %w", err)
	}
	return session, nil
}

// Update persists changes to an existing session.
func (s *Store) Update(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	session.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
         SET track_a_path = ?, track_b_path = ?, bundle_json = ?, preferences_json = ?,
             decision_json = ?, decision_source = ?, strategy = ?, status = ?,
             cancel_requested = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, artifact_path = ?, lossless_path = ?,
             duration_ms = ?, peak_db = ?, warnings_json = ?, error_message = ?,
             suggestion = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		session.TrackAPath,
		session.TrackBPath,
		nullableString(session.BundleJSON),
		nullableString(session.PreferencesJSON),
		nullableString(session.DecisionJSON),
		nullableString(session.DecisionSource),
		nullableString(session.Strategy),
		session.Status,
		boolToInt(session.CancelRequested),
		nullableString(session.ProgressStage),
		session.ProgressPercent,
		nullableString(session.ProgressMessage),
		nullableString(session.ArtifactPath),
		nullableString(session.LosslessPath),
		session.DurationMS,
		session.PeakDB,
		nullableString(session.WarningsJSON),
		nullableString(session.ErrorMessage),
		nullableString(session.Suggestion),
		session.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(session.CompletedAt),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// List returns sessions filtered by status set, or all sessions when no
// status is provided, ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ItemsByStatus returns sessions matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Session, error) {
	return s.List(ctx, status)
}

// ClaimNext atomically moves the oldest session in the from status to the
// to status and returns it. Returns nil when nothing is claimable.
func (s *Store) ClaimNext(ctx context.Context, from, to Status) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM sessions WHERE status = ? ORDER BY created_at, id LIMIT 1`, from)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select claimable session: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UTC().Format(time.RFC3339Nano), id, from)
	if err != nil {
		return nil, fmt.Errorf("claim session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkCancelRequested flags a session for cooperative cancellation. Pending
// sessions are cancelled immediately; in-flight sessions get the flag and
// the workflow honors it between stages. Terminal and rendering sessions
// are left alone; rendering always runs to completion.
func (s *Store) MarkCancelRequested(ctx context.Context, sessionUUID string) (*Session, error) {
	session, err := s.GetByUUID(ctx, sessionUUID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	switch session.Status {
	case StatusPending, StatusPlanned:
		session.SetCancelled()
		session.CancelRequested = true
		now := time.Now().UTC()
		session.CompletedAt = &now
	case StatusPlanning:
		session.CancelRequested = true
	default:
		return session, nil
	}
	if err := s.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ResetStuckProcessing moves sessions stranded in a processing state back
// to their pre-stage status. Used on daemon startup for crash recovery.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var total int64
	transitions := []struct {
		from Status
		to   Status
	}{
		{StatusPlanning, StatusPending},
		{StatusRendering, StatusPlanned},
	}
	for _, transition := range transitions {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE sessions
             SET status = ?, progress_stage = 'reset', progress_percent = 0,
                 progress_message = 'Reset from stuck processing', updated_at = ?
             WHERE status = ?`,
			transition.to, now, transition.from)
		if err != nil {
			return total, fmt.Errorf("reset stuck sessions: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reset rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// PruneCompleted removes terminal sessions older than the retention window.
func (s *Store) PruneCompleted(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM sessions WHERE status IN (?, ?, ?) AND updated_at < ?`,
		StatusCompleted, StatusFailed, StatusCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates session state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending, StatusPlanned:
			health.Pending += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("session database connection unavailable")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Remove deletes a session by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const sessionColumns = "id, uuid, track_a_path, track_b_path, bundle_json, preferences_json, " +
	"decision_json, decision_source, strategy, status, cancel_requested, progress_stage, " +
	"progress_percent, progress_message, artifact_path, lossless_path, duration_ms, " +
	"peak_db, warnings_json, error_message, suggestion, created_at, updated_at, completed_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id              int64
		sessionUUID     string
		trackAPath      string
		trackBPath      string
		bundleJSON      sql.NullString
		preferencesJSON sql.NullString
		decisionJSON    sql.NullString
		decisionSource  sql.NullString
		strategy        sql.NullString
		statusStr       string
		cancelRequested sql.NullInt64
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		artifactPath    sql.NullString
		losslessPath    sql.NullString
		durationMS      sql.NullFloat64
		peakDB          sql.NullFloat64
		warningsJSON    sql.NullString
		errorMessage    sql.NullString
		suggestion      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sessionUUID,
		&trackAPath,
		&trackBPath,
		&bundleJSON,
		&preferencesJSON,
		&decisionJSON,
		&decisionSource,
		&strategy,
		&statusStr,
		&cancelRequested,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&artifactPath,
		&losslessPath,
		&durationMS,
		&peakDB,
		&warningsJSON,
		&errorMessage,
		&suggestion,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	session := &Session{
		ID:              id,
		UUID:            sessionUUID,
		TrackAPath:      trackAPath,
		TrackBPath:      trackBPath,
		BundleJSON:      bundleJSON.String,
		PreferencesJSON: preferencesJSON.String,
		DecisionJSON:    decisionJSON.String,
		DecisionSource:  decisionSource.String,
		Strategy:        strategy.String,
		Status:          Status(statusStr),
		CancelRequested: cancelRequested.Valid && cancelRequested.Int64 != 0,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ArtifactPath:    artifactPath.String,
		LosslessPath:    losslessPath.String,
		DurationMS:      durationMS.Float64,
		PeakDB:          peakDB.Float64,
		WarningsJSON:    warningsJSON.String,
		ErrorMessage:    errorMessage.String,
		Suggestion:      suggestion.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		session.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		session.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			session.CompletedAt = &completed
		}
	}
	return session, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
