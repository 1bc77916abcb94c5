package mysql

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
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel/trace"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// Duplicate entry for a unique key
const errDuplicateEntry = 1062

func NewMysqlBackend(host string, port int, user, password, database string, opts ...option) *mysqlBackend {
	backendOptions := backend.ApplyOptions()

	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	cfg := gomysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	// Report matched instead of changed rows, so updates that do not change a value are found
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		panic(err)
	}

	if options.MySQLOptions != nil {
		options.MySQLOptions(db)
	}

	cfg.MultiStatements = true

	b := &mysqlBackend{
		dsn:     cfg.FormatDSN(),
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

type mysqlBackend struct {
	// dsn is used for migrations, it allows multiple statements
	dsn     string
	db      *sql.DB
	options *options
}

var _ backend.Backend = (*mysqlBackend)(nil)

// Migrate applies any pending database migrations.
func (b *mysqlBackend) Migrate() error {
	schemaDB, err := sql.Open("mysql", b.dsn)
	if err != nil {
		return fmt.Errorf("opening schema database: %w", err)
	}

	dbi, err := migratemysql.WithInstance(schemaDB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if err := schemaDB.Close(); err != nil {
		return fmt.Errorf("closing schema database: %w", err)
	}

	return nil
}

func (b *mysqlBackend) Close() error {
	return b.db.Close()
}

func (b *mysqlBackend) Tracer() trace.Tracer {
	return tracing.Tracer(b.options.TracerProvider)
}

func (b *mysqlBackend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "mysql"})
}

func (b *mysqlBackend) Options() *backend.Options {
	return b.options.Options
}

func (b *mysqlBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	_, err := b.db.ExecContext(
		ctx,
		"INSERT INTO `instances` (id, definition_id, state, snapshot, created_at, updated_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		record.Instance.InstanceID,
		record.Instance.DefinitionID,
		record.State,
		[]byte(record.Snapshot),
		record.CreatedAt.UnixMilli(),
		record.UpdatedAt.UnixMilli(),
		toNullMillis(record.CompletedAt),
	)
	if err != nil {
		var mysqlErr *gomysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return backend.ErrInstanceAlreadyExists
		}

		return fmt.Errorf("inserting process instance: %w", err)
	}

	return nil
}

func (b *mysqlBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	res, err := b.db.ExecContext(
		ctx,
		"UPDATE `instances` SET state = ?, snapshot = ?, updated_at = ?, completed_at = ? WHERE id = ?",
		record.State,
		[]byte(record.Snapshot),
		record.UpdatedAt.UnixMilli(),
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

func (b *mysqlBackend) GetProcessInstance(ctx context.Context, instanceID string) (*backend.ProcessRecord, error) {
	row := b.db.QueryRowContext(
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
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		r.CompletedAt = &t
	}

	return r, nil
}

func (b *mysqlBackend) GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	row := b.db.QueryRowContext(ctx, "SELECT state FROM `instances` WHERE id = ?", instanceID)

	var state core.ProcessState
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProcessStateCreated, backend.ErrInstanceNotFound
		}

		return core.ProcessStateCreated, fmt.Errorf("scanning process instance state: %w", err)
	}

	return state, nil
}

func (b *mysqlBackend) RemoveProcessInstance(ctx context.Context, instanceID string) error {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT state FROM `instances` WHERE id = ? FOR UPDATE", instanceID)

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

func (b *mysqlBackend) RemoveProcessInstances(ctx context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	query := "DELETE FROM `instances` WHERE state = ? AND completed_at IS NOT NULL"
	args := []any{core.ProcessStateFinished}
	if !o.FinishedBefore.IsZero() {
		query += " AND completed_at < ?"
		args = append(args, o.FinishedBefore.UnixMilli())
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting process instances: %w", err)
	}

	return nil
}

func (b *mysqlBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{}

	row := b.db.QueryRowContext(
		ctx,
		"SELECT COALESCE(SUM(state <> ?), 0), COALESCE(SUM(state = ?), 0) FROM `instances`",
		core.ProcessStateFinished,
		core.ProcessStateFinished,
	)
	if err := row.Scan(&s.ActiveProcessInstances, &s.FinishedProcessInstances); err != nil {
		return nil, fmt.Errorf("failed to query process instances: %w", err)
	}

	return s, nil
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
