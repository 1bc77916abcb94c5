package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend/memory"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/engine"
	internal "github.com/cschleiden/go-wfmc/internal/worker"
	"github.com/cschleiden/go-wfmc/tester"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/jellydator/ttlcache/v3.(*Cache[...]).Start"))
}

func calculator(t *testing.T) *definition.ProcessDefinition {
	pd := definition.NewProcessDefinition("calc")
	pd.DefineParameters(
		definition.InputParameter("a"),
		definition.InputOutputParameter("b"),
		definition.OutputParameter("sum"),
	)
	pd.DefineApplications(map[string]*definition.Application{
		"add": definition.NewApplication(
			definition.InputParameter("x"),
			definition.InputOutputParameter("y"),
			definition.OutputParameter("z"),
		),
	})
	pd.DefineActivities(map[string]*definition.ActivityDefinition{
		"add":  definition.NewActivity(),
		"done": definition.NewActivity(),
	})
	pd.DefineTransitions(definition.NewTransition("add", "done"))

	add, _ := pd.Activity("add")
	require.NoError(t, add.AddApplication("add", "a", "b", "sum"))

	return pd
}

type setup struct {
	engine *engine.Engine
	worker *Worker
	cancel context.CancelFunc
}

func newSetup(t *testing.T, options *Options) *setup {
	tt := tester.New()
	require.NoError(t, tt.Register(calculator(t)))

	e := engine.New(memory.NewMemoryBackend(), tt.Runtime)
	w := New(e, tt.Registry, options)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	s := &setup{engine: e, worker: w, cancel: cancel}
	t.Cleanup(s.stop)

	return s
}

func (s *setup) stop() {
	s.cancel()
	_ = s.worker.WaitForCompletion()
	s.engine.Close()
}

func fastRetries(o Options) *Options {
	o.RetryInitialInterval = time.Millisecond
	o.RetryMaxInterval = time.Millisecond
	return &o
}

func Test_Worker_ExecutesApplication(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t, nil)

	require.NoError(t, s.worker.RegisterApplication("add", func(ctx context.Context, x, y int) (int, int, error) {
		return y, x + y, nil
	}))

	instance, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
	require.NoError(t, err)

	sum, err := engine.GetProcessResult[int](ctx, s.engine, instance.InstanceID, 1, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 5, sum)

	state, err := s.engine.GetProcessState(ctx, instance.InstanceID)
	require.NoError(t, err)
	require.Equal(t, core.ProcessStateFinished, state)
}

func Test_Worker_DefinitionApplicationTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t, nil)

	require.NoError(t, s.worker.RegisterApplication("add", func(x, y int) (int, int, error) {
		return y, x + y, nil
	}))
	require.NoError(t, s.worker.RegisterDefinitionApplication("calc", "add", func(x, y int) (int, int, error) {
		return y, x * y, nil
	}))

	instance, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
	require.NoError(t, err)

	product, err := engine.GetProcessResult[int](ctx, s.engine, instance.InstanceID, 1, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 6, product)
}

func Test_Worker_RetriesApplication(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t, fastRetries(DefaultOptions))

	var calls atomic.Int32
	require.NoError(t, s.worker.RegisterApplication("add", func(x, y int) (int, int, error) {
		if calls.Add(1) < 3 {
			return 0, 0, errors.New("unavailable")
		}

		return y, x + y, nil
	}))

	instance, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
	require.NoError(t, err)

	sum, err := engine.GetProcessResult[int](ctx, s.engine, instance.InstanceID, 1, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 5, sum)
	require.Equal(t, int32(3), calls.Load())
}

func Test_Worker_Failures(t *testing.T) {
	errInvalid := errors.New("invalid input")

	tests := []struct {
		name             string
		fn               any
		expectedAttempts int
		check            func(t *testing.T, err error)
	}{
		{
			name: "retries exhausted",
			fn: func(x, y int) (int, int, error) {
				return 0, 0, errors.New("unavailable")
			},
			expectedAttempts: 3,
			check: func(t *testing.T, err error) {
				require.EqualError(t, err, "unavailable")
			},
		},
		{
			name: "permanent error",
			fn: func(x, y int) (int, int, error) {
				return 0, 0, NewPermanentError(errInvalid)
			},
			expectedAttempts: 1,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, errInvalid)
			},
		},
		{
			name: "panic",
			fn: func(x, y int) (int, int, error) {
				panic("boom")
			},
			expectedAttempts: 3,
			check: func(t *testing.T, err error) {
				var pe *PanicError
				require.ErrorAs(t, err, &pe)
				require.Equal(t, "panic: boom", pe.Error())
				require.NotEmpty(t, pe.Stack())
			},
		},
		{
			name: "argument mismatch",
			fn: func(x int) (int, int, error) {
				return 0, 0, nil
			},
			expectedAttempts: 1,
			check: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "mismatched argument count")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			failures := make(chan *Failure, 1)
			o := fastRetries(DefaultOptions)
			o.ErrorHandler = func(ctx context.Context, f *Failure) {
				failures <- f
			}

			s := newSetup(t, o)
			require.NoError(t, s.worker.RegisterApplication("add", tt.fn))

			instance, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
			require.NoError(t, err)

			select {
			case f := <-failures:
				require.Equal(t, instance.InstanceID, f.InstanceID)
				require.Equal(t, "add", f.Application)
				require.Equal(t, tt.expectedAttempts, f.Attempts)
				tt.check(t, f.Err)
			case <-time.After(5 * time.Second):
				t.Fatal("expected failure to be reported")
			}

			state, err := s.engine.GetProcessState(ctx, instance.InstanceID)
			require.NoError(t, err)
			require.Equal(t, core.ProcessStateRunning, state)
		})
	}
}

func Test_Worker_ReportsCompletionFailure(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var failure *Failure
	o := DefaultOptions
	o.ErrorHandler = func(ctx context.Context, f *Failure) {
		mu.Lock()
		defer mu.Unlock()
		failure = f
	}

	s := newSetup(t, &o)

	// Too few results for the application's output parameters
	require.NoError(t, s.worker.RegisterApplication("add", func(x, y int) (int, error) {
		return x + y, nil
	}))

	_, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failure != nil
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.ErrorContains(t, failure.Err, "completing work item")
	require.Equal(t, 1, failure.Attempts)
}

func Test_Worker_RegisterApplication_Invalid(t *testing.T) {
	s := newSetup(t, nil)

	err := s.worker.RegisterApplication("add", "not a function")
	require.ErrorContains(t, err, "application must be a function")

	err = s.worker.RegisterApplication("add", func(x int) int { return x })
	require.ErrorContains(t, err, "application must return error as last return value")
}

func Test_Worker_StoppedWorkerRejectsWorkItems(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t, nil)

	require.NoError(t, s.worker.RegisterApplication("add", func(x, y int) (int, int, error) {
		return y, x + y, nil
	}))

	s.cancel()
	require.NoError(t, s.worker.WaitForCompletion())

	_, err := s.engine.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2, 3)
	require.ErrorIs(t, err, internal.ErrWorkerStopped)
}
