package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/metrics"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

func NewInMemoryBackend(opts ...option) *sqliteBackend {
	b := newSqliteBackend("file::memory:", opts...)

	b.db.SetMaxOpenConns(1)

	return b
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	return newSqliteBackend(fmt.Sprintf("file:%v?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path), opts...)
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	backendOptions := backend.ApplyOptions()

	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	b := &sqliteBackend{
		db:      db,
		options: options,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type sqliteBackend struct {
	db      *sql.DB
	options *options
}

var _ backend.Backend = (*sqliteBackend)(nil)

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := sqlite.WithInstance(sb.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

func (sb *sqliteBackend) Close() error {
	return sb.db.Close()
}

func (sb *sqliteBackend) Tracer() trace.Tracer {
	return tracing.Tracer(sb.options.TracerProvider)
}

func (sb *sqliteBackend) Metrics() metrics.Client {
	return sb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "sqlite"})
}

func (sb *sqliteBackend) Options() *backend.Options {
	return sb.options.Options
}

func (sb *sqliteBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	res, err := sb.db.ExecContext(
		ctx,
		"INSERT OR IGNORE INTO `instances` (id, definition_id, state, snapshot, created_at, updated_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		record.Instance.InstanceID,
		record.Instance.DefinitionID,
		record.State,
		[]byte(record.Snapshot),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		toNullMillis(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting process instance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		return backend.ErrInstanceAlreadyExists
	}

	return nil
}

func (sb *sqliteBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	res, err := sb.db.ExecContext(
		ctx,
		"UPDATE `instances` SET state = ?, snapshot = ?, updated_at = ?, completed_at = ? WHERE id = ?",
		record.State,
		[]byte(record.Snapshot),
		toMillis(record.UpdatedAt),
		toNullMillis(record.CompletedAt),
		record.Instance.InstanceID,
	)
	if err != nil {
		return fmt.Errorf("updating process instance: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking for updated process instance: %w", err)
	} else if n != 1 {
		return backend.ErrInstanceNotFound
	}

	return nil
}

func (sb *sqliteBackend) GetProcessInstance(ctx context.Context, instanceID string) (*backend.ProcessRecord, error) {
	row := sb.db.QueryRowContext(
		ctx,
		"SELECT definition_id, state, snapshot, created_at, updated_at, completed_at FROM `instances` WHERE id = ?",
		instanceID,
	)

	var definitionID string
	var snapshot []byte
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	r := &backend.ProcessRecord{}
	if err := row.Scan(&definitionID, &r.State, &snapshot, &createdAt, &updatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("scanning process instance: %w", err)
	}

	r.Instance = core.NewProcessInstance(instanceID, definitionID)
	r.Snapshot = snapshot
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	r.CompletedAt = fromNullMillis(completedAt)

	return r, nil
}

func (sb *sqliteBackend) GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	row := sb.db.QueryRowContext(ctx, "SELECT state FROM `instances` WHERE id = ?", instanceID)

	var state core.ProcessState
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProcessStateCreated, backend.ErrInstanceNotFound
		}

		return core.ProcessStateCreated, fmt.Errorf("scanning process instance state: %w", err)
	}

	return state, nil
}

func (sb *sqliteBackend) RemoveProcessInstance(ctx context.Context, instanceID string) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT state FROM `instances` WHERE id = ?", instanceID)

	var state core.ProcessState
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ErrInstanceNotFound
		}

		return fmt.Errorf("scanning process instance state: %w", err)
	}

	if state != core.ProcessStateFinished {
		return backend.ErrInstanceNotFinished
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM `instances` WHERE id = ?", instanceID); err != nil {
		return fmt.Errorf("deleting process instance: %w", err)
	}

	return tx.Commit()
}

func (sb *sqliteBackend) RemoveProcessInstances(ctx context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	query := "DELETE FROM `instances` WHERE state = ? AND completed_at IS NOT NULL"
	args := []any{core.ProcessStateFinished}
	if !o.FinishedBefore.IsZero() {
		query += " AND completed_at < ?"
		args = append(args, toMillis(o.FinishedBefore))
	}

	if _, err := sb.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting process instances: %w", err)
	}

	return nil
}

func (sb *sqliteBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{}

	row := sb.db.QueryRowContext(
		ctx,
		"SELECT COALESCE(SUM(CASE WHEN state = ? THEN 0 ELSE 1 END), 0), COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) FROM `instances`",
		core.ProcessStateFinished,
		core.ProcessStateFinished,
	)
	if err := row.Scan(&s.ActiveProcessInstances, &s.FinishedProcessInstances); err != nil {
		return nil, fmt.Errorf("failed to query process instances: %w", err)
	}

	return s, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}

	t := fromMillis(ms.Int64)
	return &t
}
