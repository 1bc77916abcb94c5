package sqlite

import (
	"testing"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/backend/test"
)

func Test_SqliteBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_EndToEndSqliteBackend(t *testing.T) {
	test.EndToEndBackendTest(t, func(options ...backend.BackendOption) backend.Backend {
		return NewInMemoryBackend(WithBackendOptions(options...))
	}, func(b backend.Backend) {
		b.Close()
	})
}
