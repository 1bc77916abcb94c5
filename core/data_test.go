package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Data_SetGet(t *testing.T) {
	d := NewData()

	d.Set("x", 99)
	d.Set("name", "eek")

	v, ok := d.Get("x")
	require.True(t, ok)
	require.Equal(t, 99, v)

	require.True(t, d.Has("name"))
	require.False(t, d.Has("y"))
	require.Equal(t, []string{"name", "x"}, d.Names())
}

func Test_Data_Value(t *testing.T) {
	d := NewData()
	d.Set("x", 42)

	x, err := Value[int](d, "x")
	require.NoError(t, err)
	require.Equal(t, 42, x)

	_, err = Value[int](d, "missing")
	require.Error(t, err)

	_, err = Value[string](d, "x")
	require.Error(t, err)
}

func Test_Data_RoundTrip(t *testing.T) {
	d := NewData()
	d.Set("x", 42)
	d.Set("tags", []string{"a", "b"})

	b, err := json.Marshal(d)
	require.NoError(t, err)

	var restored Data
	require.NoError(t, json.Unmarshal(b, &restored))
	require.Equal(t, d.Names(), restored.Names())

	x, err := Value[int](&restored, "x")
	require.NoError(t, err)
	require.Equal(t, 42, x)

	// Decoded values are cached
	raw, _ := restored.Get("x")
	require.Equal(t, 42, raw)

	tags, err := Value[[]string](&restored, "tags")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, tags)

	// Re-marshal without decoding keeps the payload intact
	b2, err := json.Marshal(&restored)
	require.NoError(t, err)
	require.JSONEq(t, string(b), string(b2))
}

func Test_ProcessState_Scan(t *testing.T) {
	var s ProcessState
	require.NoError(t, s.Scan(int64(2)))
	require.Equal(t, ProcessStateFinished, s)

	require.NoError(t, s.Scan([]byte("1")))
	require.Equal(t, ProcessStateRunning, s)

	require.Error(t, s.Scan("nope"))
	require.Equal(t, "running", s.String())
}
