package postgres

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
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/trace"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

const errUniqueViolation = "23505"

func NewPostgresBackend(host string, port int, user, password, database string, opts ...option) *postgresBackend {
	backendOptions := backend.ApplyOptions()

	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	sslMode := options.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", host, port, user, password, database, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		panic(err)
	}

	if options.PostgresOptions != nil {
		options.PostgresOptions(db)
	}

	b := &postgresBackend{
		dsn:            dsn,
		db:             db,
		options:        options,
		ownsConnection: true,
	}

	if options.Notifications {
		b.listener = newNotificationListener(dsn, options.Logger)
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

// NewPostgresBackendWithDB creates a new Postgres backend using an existing database connection.
// When using this constructor, the backend will not close the database connection when Close() is called.
// Notifications are not available without a DSN.
func NewPostgresBackendWithDB(db *sql.DB, opts ...option) *postgresBackend {
	backendOptions := backend.ApplyOptions()

	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: false,
	}

	for _, opt := range opts {
		opt(options)
	}

	b := &postgresBackend{
		db:             db,
		options:        options,
		ownsConnection: false,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type postgresBackend struct {
	dsn            string
	db             *sql.DB
	options        *options
	ownsConnection bool

	listener *notificationListener
}

var (
	_ backend.Backend        = (*postgresBackend)(nil)
	_ backend.FinishNotifier = (*postgresBackend)(nil)
)

func (pb *postgresBackend) Close() error {
	if pb.listener != nil {
		if err := pb.listener.Close(); err != nil {
			return err
		}
	}

	if !pb.ownsConnection {
		return nil
	}

	return pb.db.Close()
}

// Migrate applies any pending database migrations.
func (pb *postgresBackend) Migrate() error {
	var db *sql.DB
	var needsClose bool

	if pb.dsn != "" {
		var err error
		db, err = sql.Open("postgres", pb.dsn)
		if err != nil {
			return fmt.Errorf("opening schema database: %w", err)
		}
		needsClose = true
	} else {
		db = pb.db
	}

	dbi, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "postgres", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if needsClose {
		if err := db.Close(); err != nil {
			return fmt.Errorf("closing schema database: %w", err)
		}
	}

	return nil
}

func (pb *postgresBackend) Tracer() trace.Tracer {
	return tracing.Tracer(pb.options.TracerProvider)
}

func (pb *postgresBackend) Metrics() metrics.Client {
	return pb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "postgres"})
}

func (pb *postgresBackend) Options() *backend.Options {
	return pb.options.Options
}

// NotifyFinished subscribes to finish notifications for the given instance. Without
// notifications enabled the returned channel is never closed and callers rely on polling.
func (pb *postgresBackend) NotifyFinished(instanceID string) (<-chan struct{}, func()) {
	if pb.listener == nil {
		return make(chan struct{}), func() {}
	}

	if err := pb.listener.Start(); err != nil {
		pb.options.Logger.Error("starting process listener", "error", err)
		return make(chan struct{}), func() {}
	}

	return pb.listener.Subscribe(instanceID)
}

func (pb *postgresBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	_, err := pb.db.ExecContext(
		ctx,
		`INSERT INTO instances (id, definition_id, state, snapshot, created_at, updated_at, completed_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.Instance.InstanceID,
		record.Instance.DefinitionID,
		record.State,
		[]byte(record.Snapshot),
		record.CreatedAt.UnixMilli(),
		record.UpdatedAt.UnixMilli(),
		toNullMillis(record.CompletedAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == errUniqueViolation {
			return backend.ErrInstanceAlreadyExists
		}

		return fmt.Errorf("inserting process instance: %w", err)
	}

	return nil
}

func (pb *postgresBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	tx, err := pb.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE instances SET state = $1, snapshot = $2, updated_at = $3, completed_at = $4 WHERE id = $5`,
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

	if record.Finished() && pb.options.Notifications {
		// Delivered on commit
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, processFinishedChannel, record.Instance.InstanceID); err != nil {
			return fmt.Errorf("notifying process finished: %w", err)
		}
	}

	return tx.Commit()
}

func (pb *postgresBackend) GetProcessInstance(ctx context.Context, instanceID string) (*backend.ProcessRecord, error) {
	row := pb.db.QueryRowContext(
		ctx,
		`SELECT definition_id, state, snapshot, created_at, updated_at, completed_at FROM instances WHERE id = $1`,
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

func (pb *postgresBackend) GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	row := pb.db.QueryRowContext(ctx, `SELECT state FROM instances WHERE id = $1`, instanceID)

	var state core.ProcessState
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProcessStateCreated, backend.ErrInstanceNotFound
		}

		return core.ProcessStateCreated, fmt.Errorf("scanning process instance state: %w", err)
	}

	return state, nil
}

func (pb *postgresBackend) RemoveProcessInstance(ctx context.Context, instanceID string) error {
	tx, err := pb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT state FROM instances WHERE id = $1 FOR UPDATE`, instanceID)

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

	if _, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, instanceID); err != nil {
		return fmt.Errorf("deleting process instance: %w", err)
	}

	return tx.Commit()
}

func (pb *postgresBackend) RemoveProcessInstances(ctx context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	query := `DELETE FROM instances WHERE state = $1 AND completed_at IS NOT NULL`
	args := []any{core.ProcessStateFinished}
	if !o.FinishedBefore.IsZero() {
		query += ` AND completed_at < $2`
		args = append(args, o.FinishedBefore.UnixMilli())
	}

	if _, err := pb.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting process instances: %w", err)
	}

	return nil
}

func (pb *postgresBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{}

	row := pb.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FILTER (WHERE state <> $1), COUNT(*) FILTER (WHERE state = $1) FROM instances`,
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
