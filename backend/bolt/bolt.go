package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/internal/metrickeys"
	"github.com/cschleiden/go-wfmc/internal/tracing"
	"github.com/cschleiden/go-wfmc/metrics"
	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/trace"
)

var (
	// instancesBucketKey is the key of the bucket holding all process records. The keys are instance ids.
	instancesBucketKey = []byte("instances")

	// finishedBucketKey is the key of the index bucket of finished instances. The keys are the 8-byte
	// big-endian completion time followed by the instance id, values are empty.
	finishedBucketKey = []byte("finished")
)

var errStop = errors.New("stop")

// NewBoltBackend opens or creates the BoltDB database at path.
func NewBoltBackend(path string, opts ...option) (*boltBackend, error) {
	backendOptions := backend.ApplyOptions()

	options := &options{
		Options:  &backendOptions,
		FileMode: 0600,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := bbolt.Open(path, options.FileMode, &bbolt.Options{Timeout: options.Timeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, k := range [][]byte{instancesBucketKey, finishedBucketKey} {
			if _, err := tx.CreateBucketIfNotExists(k); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &boltBackend{
		db:      db,
		options: options,
	}, nil
}

type boltBackend struct {
	db      *bbolt.DB
	options *options
}

var _ backend.Backend = (*boltBackend)(nil)

func (bb *boltBackend) CreateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	data, err := marshalRecord(record)
	if err != nil {
		return err
	}

	return bb.db.Update(func(tx *bbolt.Tx) error {
		instances := tx.Bucket(instancesBucketKey)

		key := []byte(record.Instance.InstanceID)
		if instances.Get(key) != nil {
			return backend.ErrInstanceAlreadyExists
		}

		if err := instances.Put(key, data); err != nil {
			return fmt.Errorf("inserting process instance: %w", err)
		}

		if record.CompletedAt != nil {
			return tx.Bucket(finishedBucketKey).Put(finishedKey(*record.CompletedAt, record.Instance.InstanceID), nil)
		}

		return nil
	})
}

func (bb *boltBackend) UpdateProcessInstance(ctx context.Context, record *backend.ProcessRecord) error {
	return bb.db.Update(func(tx *bbolt.Tx) error {
		instances := tx.Bucket(instancesBucketKey)
		finished := tx.Bucket(finishedBucketKey)

		key := []byte(record.Instance.InstanceID)

		existing, err := bb.get(instances, key)
		if err != nil {
			return err
		}

		if existing.CompletedAt != nil {
			if err := finished.Delete(finishedKey(*existing.CompletedAt, existing.Instance.InstanceID)); err != nil {
				return err
			}
		}

		r := record.Clone()
		r.CreatedAt = existing.CreatedAt

		data, err := marshalRecord(r)
		if err != nil {
			return err
		}

		if err := instances.Put(key, data); err != nil {
			return fmt.Errorf("updating process instance: %w", err)
		}

		if r.CompletedAt != nil {
			return finished.Put(finishedKey(*r.CompletedAt, r.Instance.InstanceID), nil)
		}

		return nil
	})
}

func (bb *boltBackend) GetProcessInstance(ctx context.Context, instanceID string) (*backend.ProcessRecord, error) {
	var r *backend.ProcessRecord

	err := bb.db.View(func(tx *bbolt.Tx) error {
		var err error
		r, err = bb.get(tx.Bucket(instancesBucketKey), []byte(instanceID))
		return err
	})

	return r, err
}

func (bb *boltBackend) GetProcessInstanceState(ctx context.Context, instanceID string) (core.ProcessState, error) {
	r, err := bb.GetProcessInstance(ctx, instanceID)
	if err != nil {
		return core.ProcessStateCreated, err
	}

	return r.State, nil
}

func (bb *boltBackend) RemoveProcessInstance(ctx context.Context, instanceID string) error {
	return bb.db.Update(func(tx *bbolt.Tx) error {
		instances := tx.Bucket(instancesBucketKey)

		r, err := bb.get(instances, []byte(instanceID))
		if err != nil {
			return err
		}

		if !r.Finished() {
			return backend.ErrInstanceNotFinished
		}

		if r.CompletedAt != nil {
			if err := tx.Bucket(finishedBucketKey).Delete(finishedKey(*r.CompletedAt, instanceID)); err != nil {
				return err
			}
		}

		return instances.Delete([]byte(instanceID))
	})
}

func (bb *boltBackend) RemoveProcessInstances(ctx context.Context, options ...backend.RemovalOption) error {
	o := backend.ApplyRemovalOptions(options...)

	return bb.db.Update(func(tx *bbolt.Tx) error {
		instances := tx.Bucket(instancesBucketKey)
		finished := tx.Bucket(finishedBucketKey)

		var keys [][]byte

		// The finished index is ordered by completion time, stop at the first one not matching
		err := finished.ForEach(func(k, _ []byte) error {
			ms, _, err := unmarshalFinishedKey(k)
			if err != nil {
				return err
			}

			completedAt := time.UnixMilli(ms)
			if !o.Matches(&completedAt) {
				return errStop
			}

			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			return err
		}

		for _, k := range keys {
			_, instanceID, _ := unmarshalFinishedKey(k)

			if err := instances.Delete([]byte(instanceID)); err != nil {
				return err
			}

			if err := finished.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

func (bb *boltBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{}

	err := bb.db.View(func(tx *bbolt.Tx) error {
		total := int64(tx.Bucket(instancesBucketKey).Stats().KeyN)
		finished := int64(tx.Bucket(finishedBucketKey).Stats().KeyN)

		s.ActiveProcessInstances = total - finished
		s.FinishedProcessInstances = finished

		return nil
	})

	return s, err
}

func (bb *boltBackend) get(instances *bbolt.Bucket, key []byte) (*backend.ProcessRecord, error) {
	data := instances.Get(key)
	if data == nil {
		return nil, backend.ErrInstanceNotFound
	}

	return unmarshalRecord(data)
}

func (bb *boltBackend) Tracer() trace.Tracer {
	return tracing.Tracer(bb.options.TracerProvider)
}

func (bb *boltBackend) Metrics() metrics.Client {
	return bb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "bolt"})
}

func (bb *boltBackend) Options() *backend.Options {
	return bb.options.Options
}

func (bb *boltBackend) Close() error {
	return bb.db.Close()
}
