package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/converter"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/engine"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/cschleiden/go-wfmc/registry"
	"github.com/cschleiden/go-wfmc/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// EndToEndBackendTest runs process definitions through an engine and a worker on top of the
// backend returned by setup.
func EndToEndBackendTest(t *testing.T, setup func(options ...backend.BackendOption) backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker)
	}{
		{
			name: "SimpleProcess",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"add": func(ctx context.Context, x, y int) (int, int, error) {
						return y, x + y, nil
					},
				})

				instance := runProcess(t, ctx, e, "calc", 2, 3)

				sum, err := engine.GetProcessResult[int](ctx, e, instance.InstanceID, 1, time.Second*10)
				require.NoError(t, err)
				require.Equal(t, 5, sum)

				b2, err := engine.GetProcessResult[int](ctx, e, instance.InstanceID, 0, time.Second*10)
				require.NoError(t, err)
				require.Equal(t, 3, b2)

				record, err := b.GetProcessInstance(ctx, instance.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.ProcessStateFinished, record.State)
				require.NotNil(t, record.CompletedAt)
			},
		},
		{
			name: "ParallelSplitAndJoin",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"double": func(n int) (int, error) {
						return n * 2, nil
					},
					"square": func(n int) (int, error) {
						return n * n, nil
					},
				})

				instance := runProcess(t, ctx, e, "fanout", 7)
				require.NoError(t, e.WaitForProcess(ctx, instance.InstanceID, time.Second*10))

				results, err := e.GetProcessResults(ctx, instance.InstanceID)
				require.NoError(t, err)
				require.Len(t, results, 2)

				var doubled, squared int
				require.NoError(t, converter.AssignValue(converter.DefaultConverter, results[0], &doubled))
				require.NoError(t, converter.AssignValue(converter.DefaultConverter, results[1], &squared))
				require.Equal(t, 14, doubled)
				require.Equal(t, 49, squared)
			},
		},
		{
			name: "ConditionalRouting",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"big": func() (string, error) {
						return "big", nil
					},
					"small": func() (string, error) {
						return "small", nil
					},
				})

				for n, expected := range map[int]string{3: "small", 30: "big"} {
					instance := runProcess(t, ctx, e, "route", n)

					kind, err := engine.GetProcessResult[string](ctx, e, instance.InstanceID, 0, time.Second*10)
					require.NoError(t, err)
					require.Equal(t, expected, kind)
				}
			},
		},
		{
			name: "UnregisteredApplication",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, nil)

				instanceID := uuid.NewString()
				_, err := e.CreateProcess(ctx, engine.ProcessInstanceOptions{InstanceID: instanceID}, "calc", 2, 3)

				var re *process.ResolutionError
				require.ErrorAs(t, err, &re)

				_, err = b.GetProcessInstance(ctx, instanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "ProcessArgumentMismatch",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, nil)

				_, err := e.CreateProcess(ctx, engine.ProcessInstanceOptions{}, "calc", 2)
				require.ErrorIs(t, err, process.ErrArity)
			},
		},
		{
			name: "FailedApplicationKeepsProcessRunning",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				called := make(chan struct{})
				register(t, ctx, w, map[string]any{
					"add": func(x, y int) (int, int, error) {
						close(called)
						return 0, 0, worker.NewPermanentError(errors.New("invalid input"))
					},
				})

				instance := runProcess(t, ctx, e, "calc", 2, 3)

				select {
				case <-called:
				case <-time.After(time.Second * 10):
					t.Fatal("application was not executed")
				}

				err := e.WaitForProcess(ctx, instance.InstanceID, time.Millisecond*200)
				require.ErrorIs(t, err, engine.ErrWaitTimeout)

				state, err := e.GetProcessState(ctx, instance.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.ProcessStateRunning, state)
			},
		},
		{
			name: "CompleteWorkItem_AfterRestart",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"add": func(x, y int) (int, int, error) {
						return 0, 0, worker.NewPermanentError(errors.New("unavailable"))
					},
				})

				instance := runProcess(t, ctx, e, "calc", 2, 3)

				record, err := b.GetProcessInstance(ctx, instance.InstanceID)
				require.NoError(t, err)

				var s process.Snapshot
				require.NoError(t, b.Options().Converter.From(record.Snapshot, &s))
				require.Len(t, s.Activities, 1)
				require.Len(t, s.Activities[0].WorkItems, 1)

				// A second engine with its own runtime restores the process from the backend
				r2 := newRegistry(t)
				e2 := engine.New(b, process.NewRuntime(r2, r2))
				defer e2.Close()

				w2 := worker.New(e2, r2, nil)
				require.NoError(t, w2.RegisterApplication("add", func(x, y int) (int, int, error) {
					return y, x + y, nil
				}))

				require.NoError(t, e2.CompleteWorkItem(ctx, instance.InstanceID, s.Activities[0].ID, s.Activities[0].WorkItems[0].ID, 3, 5))

				sum, err := engine.GetProcessResult[int](ctx, e2, instance.InstanceID, 1, time.Second*10)
				require.NoError(t, err)
				require.Equal(t, 5, sum)
			},
		},
		{
			name: "RemoveProcess",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, e *engine.Engine, w *worker.Worker) {
				register(t, ctx, w, map[string]any{
					"add": func(x, y int) (int, int, error) {
						return y, x + y, nil
					},
				})

				instance := runProcess(t, ctx, e, "calc", 1, 1)
				require.NoError(t, e.WaitForProcess(ctx, instance.InstanceID, time.Second*10))

				require.NoError(t, e.RemoveProcess(ctx, instance.InstanceID))

				_, err := e.GetProcessState(ctx, instance.InstanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()
			ctx, cancel := context.WithCancel(ctx)

			r := newRegistry(t)
			e := engine.New(b, process.NewRuntime(r, r, process.WithLogger(b.Options().Logger)))
			w := worker.New(e, r, &worker.DefaultOptions)

			tt.f(t, ctx, b, e, w)

			cancel()
			if err := w.WaitForCompletion(); err != nil {
				t.Fatal("worker did not stop:", err)
			}

			e.Close()

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	r := registry.New()
	require.NoError(t, r.RegisterParticipant(".", process.NewParticipant))

	for _, pd := range []*definition.ProcessDefinition{calculatorProcess(t), fanoutProcess(t), routeProcess(t)} {
		require.NoError(t, r.RegisterDefinition(pd))
	}

	return r
}

func register(t *testing.T, ctx context.Context, w *worker.Worker, applications map[string]any) {
	for name, fn := range applications {
		require.NoError(t, w.RegisterApplication(name, fn))
	}

	err := w.Start(ctx)
	require.NoError(t, err)
}

func runProcess(t *testing.T, ctx context.Context, e *engine.Engine, definitionID string, args ...any) *core.ProcessInstance {
	instance, err := e.CreateProcess(ctx, engine.ProcessInstanceOptions{
		InstanceID: uuid.NewString(),
	}, definitionID, args...)
	require.NoError(t, err)

	return instance
}

// calc: a -> add(a, b) -> done, results (b, sum)
func calculatorProcess(t *testing.T) *definition.ProcessDefinition {
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

// fanout: split -> (double, square) -> join
func fanoutProcess(t *testing.T) *definition.ProcessDefinition {
	pd := definition.NewProcessDefinition("fanout")
	pd.DefineParameters(
		definition.InputParameter("n"),
		definition.OutputParameter("doubled"),
		definition.OutputParameter("squared"),
	)
	pd.DefineApplications(map[string]*definition.Application{
		"double": definition.NewApplication(definition.InputParameter("n"), definition.OutputParameter("r")),
		"square": definition.NewApplication(definition.InputParameter("n"), definition.OutputParameter("r")),
	})

	split := definition.NewActivity()
	split.SetAndSplit(true)
	join := definition.NewActivity()
	join.SetAndJoin(true)

	pd.DefineActivities(map[string]*definition.ActivityDefinition{
		"split":  split,
		"double": definition.NewActivity(),
		"square": definition.NewActivity(),
		"join":   join,
	})
	pd.DefineTransitions(
		definition.NewTransition("split", "double"),
		definition.NewTransition("split", "square"),
		definition.NewTransition("double", "join"),
		definition.NewTransition("square", "join"),
	)

	double, _ := pd.Activity("double")
	require.NoError(t, double.AddApplication("double", "n", "doubled"))
	square, _ := pd.Activity("square")
	require.NoError(t, square.AddApplication("square", "n", "squared"))

	return pd
}

// route: start -> big if n > 10, otherwise small
func routeProcess(t *testing.T) *definition.ProcessDefinition {
	pd := definition.NewProcessDefinition("route")
	pd.DefineParameters(
		definition.InputParameter("n"),
		definition.OutputParameter("kind"),
	)
	pd.DefineApplications(map[string]*definition.Application{
		"big":   definition.NewApplication(definition.OutputParameter("label")),
		"small": definition.NewApplication(definition.OutputParameter("label")),
	})
	pd.DefineActivities(map[string]*definition.ActivityDefinition{
		"start": definition.NewActivity(),
		"big":   definition.NewActivity(),
		"small": definition.NewActivity(),
	})

	isBig := func(d *core.Data) bool {
		n, err := core.Value[int](d, "n")
		return err == nil && n > 10
	}

	pd.DefineTransitions(
		definition.NewTransition("start", "big", isBig),
		definition.NewTransition("start", "small"),
	)

	big, _ := pd.Activity("big")
	require.NoError(t, big.AddApplication("big", "kind"))
	small, _ := pd.Activity("small")
	require.NoError(t, small.AddApplication("small", "kind"))

	return pd
}
