package registry

import (
	"context"
	"testing"

	"github.com/cschleiden/go-wfmc/definition"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/stretchr/testify/require"
)

func simpleDefinition(id string) *definition.ProcessDefinition {
	pd := definition.NewProcessDefinition(id)
	pd.DefineActivities(map[string]*definition.ActivityDefinition{
		"a": definition.NewActivity(),
		"b": definition.NewActivity(),
	})
	pd.DefineTransitions(definition.NewTransition("a", "b"))

	return pd
}

func TestRegistry_RegisterDefinition(t *testing.T) {
	broken := definition.NewProcessDefinition("broken")
	broken.DefineActivities(map[string]*definition.ActivityDefinition{
		"a": definition.NewActivity(),
		"b": definition.NewActivity(),
	})

	tests := []struct {
		name     string
		pd       *definition.ProcessDefinition
		opts     []RegisterOption
		wantName string
		wantErr  bool
	}{
		{
			name:     "by id",
			pd:       simpleDefinition("simple"),
			wantName: "simple",
		},
		{
			name:     "by name",
			pd:       simpleDefinition("simple"),
			opts:     []RegisterOption{WithName("CustomName")},
			wantName: "CustomName",
		},
		{
			name:    "missing id",
			pd:      simpleDefinition(""),
			wantErr: true,
		},
		{
			name:     "invalid definition without validation",
			pd:       broken,
			wantName: "broken",
		},
		{
			name:    "invalid definition with validation",
			pd:      broken,
			opts:    []RegisterOption{WithValidation()},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.RegisterDefinition(tt.pd, tt.opts...)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)

			pd, err := r.Definition(context.Background(), tt.wantName)
			require.NoError(t, err)
			require.Same(t, tt.pd, pd)
		})
	}
}

func TestRegistry_RegisterDefinitionFreezes(t *testing.T) {
	r := New()
	pd := simpleDefinition("simple")
	require.False(t, pd.Frozen())

	require.NoError(t, r.RegisterDefinition(pd, WithValidation()))
	require.True(t, pd.Frozen())

	require.Panics(t, func() {
		pd.DefineTransitions(definition.NewTransition("b", "a"))
	})
}

func TestRegistry_RegisterDefinitionTwice(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterDefinition(simpleDefinition("simple")))

	err := r.RegisterDefinition(simpleDefinition("simple"))
	require.Error(t, err)

	var already *ErrDefinitionAlreadyRegistered
	require.ErrorAs(t, err, &already)
}

func TestRegistry_UnknownDefinition(t *testing.T) {
	r := New()

	_, err := r.Definition(context.Background(), "unknown")
	require.ErrorIs(t, err, process.ErrNotFound)
}

type fakeWorkItem struct {
	process.BaseWorkItem

	participant process.Participant
}

func (*fakeWorkItem) Start(context.Context, ...any) error {
	return nil
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()
	r := New()

	require.NoError(t, r.RegisterParticipant(".clerk", process.NewParticipant))
	require.NoError(t, r.RegisterWorkItem("sample.review", func(p process.Participant) process.WorkItem {
		return &fakeWorkItem{participant: p}
	}))

	participant, err := r.ResolveParticipant(ctx, nil, ".clerk")
	require.NoError(t, err)
	require.Nil(t, participant.Activity())

	wi, err := r.ResolveWorkItem(ctx, participant, "sample.review")
	require.NoError(t, err)
	require.Same(t, participant, wi.(*fakeWorkItem).participant)

	_, err = r.ResolveParticipant(ctx, nil, "sample.clerk")
	require.ErrorIs(t, err, process.ErrNotFound)

	_, err = r.ResolveWorkItem(ctx, participant, ".review")
	require.ErrorIs(t, err, process.ErrNotFound)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterParticipant(".clerk", process.NewParticipant))
	err := r.RegisterParticipant(".clerk", process.NewParticipant)
	var participantErr *ErrParticipantAlreadyRegistered
	require.ErrorAs(t, err, &participantErr)

	f := func(p process.Participant) process.WorkItem { return &fakeWorkItem{participant: p} }
	require.NoError(t, r.RegisterWorkItem(".review", f))
	err = r.RegisterWorkItem(".review", f)
	var workItemErr *ErrWorkItemAlreadyRegistered
	require.ErrorAs(t, err, &workItemErr)
}
