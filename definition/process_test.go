package definition

import (
	"errors"
	"testing"

	"github.com/cschleiden/go-wfmc/core"
	"github.com/stretchr/testify/require"
)

func newDefinition(activities []string, transitions ...[2]string) *ProcessDefinition {
	pd := NewProcessDefinition("sample")

	as := make(map[string]*ActivityDefinition)
	for _, id := range activities {
		as[id] = NewActivity()
	}
	pd.DefineActivities(as)

	for _, t := range transitions {
		pd.DefineTransitions(NewTransition(t[0], t[1]))
	}

	return pd
}

func Test_StartTransition(t *testing.T) {
	tests := []struct {
		name        string
		activities  []string
		transitions [][2]string
		wantStart   string
		wantErr     string
	}{
		{
			name:        "single chain",
			activities:  []string{"eek", "ook"},
			transitions: [][2]string{{"eek", "ook"}},
			wantStart:   "eek",
		},
		{
			name:        "split and join",
			activities:  []string{"a", "b", "c", "d"},
			transitions: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			wantStart:   "a",
		},
		{
			name:        "cycle without start",
			activities:  []string{"a", "b"},
			transitions: [][2]string{{"a", "b"}, {"b", "a"}},
			wantErr:     "no start activities",
		},
		{
			name:        "multiple starts",
			activities:  []string{"a", "b", "c"},
			transitions: [][2]string{{"a", "c"}, {"b", "c"}},
			wantErr:     "multiple start activities: a, b",
		},
		{
			name:       "start without transitions",
			activities: []string{"lonely"},
			wantErr:    "activity has no transitions: lonely",
		},
		{
			name:        "unknown target",
			activities:  []string{"a"},
			transitions: [][2]string{{"a", "missing"}},
			wantErr:     "unknown target activity",
		},
		{
			name:    "empty definition",
			wantErr: "no start activities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := newDefinition(tt.activities, tt.transitions...)

			start, err := pd.StartTransition()
			if tt.wantErr != "" {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidDefinition))
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, NoSource, start.From)
			require.Equal(t, tt.wantStart, start.To)
			require.True(t, start.Evaluate(core.NewData()))
		})
	}
}

func Test_StartTransition_DerivesIncomingAndOutgoing(t *testing.T) {
	pd := newDefinition([]string{"a", "b", "c", "d"},
		[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"})

	_, err := pd.StartTransition()
	require.NoError(t, err)

	a, _ := pd.Activity("a")
	require.Len(t, a.Outgoing, 2)
	require.Empty(t, a.Incoming)
	require.Equal(t, "b", a.Outgoing[0].To)
	require.Equal(t, "c", a.Outgoing[1].To)

	d, _ := pd.Activity("d")
	require.Len(t, d.Incoming, 2)
	require.Empty(t, d.Outgoing)
}

func Test_StartTransition_IsCachedUntilMutation(t *testing.T) {
	pd := newDefinition([]string{"a", "b"}, [2]string{"a", "b"})

	s1, err := pd.StartTransition()
	require.NoError(t, err)

	s2, err := pd.StartTransition()
	require.NoError(t, err)
	require.Same(t, s1, s2)

	pd.DefineActivities(map[string]*ActivityDefinition{"z": NewActivity()})
	pd.DefineTransitions(NewTransition("z", "a"))

	s3, err := pd.StartTransition()
	require.NoError(t, err)
	require.NotSame(t, s1, s3)
	require.Equal(t, "z", s3.To)

	// Derivation is repeatable and does not duplicate derived transitions
	_, err = pd.DeriveStart()
	require.NoError(t, err)
	a, _ := pd.Activity("a")
	require.Len(t, a.Incoming, 1)
	require.Len(t, a.Outgoing, 1)
}

func Test_DefineActivities_AssignsIdentity(t *testing.T) {
	pd := NewProcessDefinition("sample")
	named := NewActivity("Named")
	pd.DefineActivities(map[string]*ActivityDefinition{
		"eek": NewActivity(),
		"ook": named,
	})

	eek, ok := pd.Activity("eek")
	require.True(t, ok)
	require.Equal(t, "eek", eek.ID)
	require.Equal(t, "sample.eek", eek.Name)
	require.Same(t, pd, eek.Process)
	require.Equal(t, "Named", named.Name)
	require.Equal(t, []string{"eek", "ook"}, pd.ActivityIDs())
}

func Test_DefineIsAdditive(t *testing.T) {
	pd := NewProcessDefinition("sample")

	pd.DefineApplications(map[string]*Application{"a": NewApplication()})
	pd.DefineApplications(map[string]*Application{"b": NewApplication(InputParameter("x"))})
	pd.DefineParticipants(map[string]*Participant{"clerk": NewParticipant("Clerk")})
	pd.DefineParameters(InputParameter("x"))
	pd.DefineParameters(OutputParameter("y"))

	a, ok := pd.Application("a")
	require.True(t, ok)
	require.Equal(t, "a", a.ID)

	b, ok := pd.Application("b")
	require.True(t, ok)
	require.Equal(t, []Parameter{InputParameter("x")}, b.Parameters)

	clerk, ok := pd.Participant("clerk")
	require.True(t, ok)
	require.Equal(t, "clerk", clerk.ID)

	require.Equal(t, []Parameter{InputParameter("x"), OutputParameter("y")}, pd.Parameters())
}

func Test_AddApplication(t *testing.T) {
	pd := NewProcessDefinition("sample")
	pd.DefineApplications(map[string]*Application{
		"eek": NewApplication(InputParameter("x"), InputParameter("y")),
	})
	pd.DefineActivities(map[string]*ActivityDefinition{"eek": NewActivity()})

	eek, _ := pd.Activity("eek")

	require.Error(t, eek.AddApplication("eek", "x"), "arity mismatch")
	require.Error(t, eek.AddApplication("missing"), "unknown application")

	require.NoError(t, eek.AddApplication("eek", "a", "b"))
	require.Len(t, eek.Applications, 1)
	require.Equal(t, "eek", eek.Applications[0].Application)
	require.Equal(t, []string{"a", "b"}, eek.Applications[0].Actual)
	require.True(t, eek.Applications[0].Formal[0].Input)

	require.Error(t, NewActivity().AddApplication("eek"), "detached activity")
}

func Test_ApplicationDefineParameters(t *testing.T) {
	app := NewApplication(InputParameter("x"))
	app.DefineParameters(OutputParameter("y"), InputOutputParameter("z"))

	require.Equal(t, []Parameter{
		{Name: "x", Input: true},
		{Name: "y", Output: true},
		{Name: "z", Input: true, Output: true},
	}, app.Parameters)
}

func Test_TransitionCondition(t *testing.T) {
	d := core.NewData()
	d.Set("amount", 150)

	tr := NewTransition("a", "b", func(data *core.Data) bool {
		v, err := core.Value[int](data, "amount")
		return err == nil && v > 100
	})
	require.True(t, tr.Evaluate(d))

	d.Set("amount", 50)
	require.False(t, tr.Evaluate(d))
	require.Equal(t, "a->b", tr.String())
}

func Test_Freeze(t *testing.T) {
	pd := newDefinition([]string{"a", "b"}, [2]string{"a", "b"})
	pd.DefineApplications(map[string]*Application{"work": NewApplication()})

	start, err := pd.StartTransition()
	require.NoError(t, err)

	pd.Freeze()
	require.True(t, pd.Frozen())

	a, _ := pd.Activity("a")
	outgoing := a.Outgoing

	_, err = pd.DeriveStart()
	require.ErrorIs(t, err, ErrFrozen)

	s, err := pd.StartTransition()
	require.NoError(t, err)
	require.Same(t, start, s)
	require.Equal(t, outgoing, a.Outgoing)

	require.ErrorIs(t, a.AddApplication("work"), ErrFrozen)
	require.Empty(t, a.Applications)

	mutations := []struct {
		name string
		fn   func()
	}{
		{"activities", func() { pd.DefineActivities(map[string]*ActivityDefinition{"c": NewActivity()}) }},
		{"transitions", func() { pd.DefineTransitions(NewTransition("b", "a")) }},
		{"applications", func() { pd.DefineApplications(map[string]*Application{"other": NewApplication()}) }},
		{"participants", func() { pd.DefineParticipants(map[string]*Participant{"clerk": {}}) }},
		{"parameters", func() { pd.DefineParameters(InputParameter("x")) }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			require.PanicsWithValue(t, `ProcessDefinition("sample"): process definition is frozen`, m.fn)
		})
	}

	require.Len(t, pd.Transitions(), 1)
	require.Empty(t, pd.Parameters())
}

func Test_DeriveStart_KeepsTransitionsOnUnknownActivity(t *testing.T) {
	pd := newDefinition([]string{"a", "b"}, [2]string{"a", "b"})

	_, err := pd.StartTransition()
	require.NoError(t, err)

	pd.DefineTransitions(NewTransition("b", "missing"))

	_, err = pd.DeriveStart()
	require.ErrorIs(t, err, ErrInvalidDefinition)

	b, _ := pd.Activity("b")
	require.Len(t, b.Incoming, 1)
	require.Empty(t, b.Outgoing)
}
