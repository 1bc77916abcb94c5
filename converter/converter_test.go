package converter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AssignValue(t *testing.T) {
	tests := []struct {
		name    string
		v       any
		want    any
		wantErr bool
	}{
		{
			name: "live value",
			v:    42,
			want: 42,
		},
		{
			name: "payload",
			v:    Payload(`42`),
			want: 42,
		},
		{
			name: "nil",
			v:    nil,
			want: 0,
		},
		{
			name:    "mismatched type",
			v:       "42",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r int
			err := AssignValue(DefaultConverter, tt.v, &r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, r)
		})
	}
}

func Test_AssignValue_PayloadToPayload(t *testing.T) {
	var p Payload
	err := AssignValue(DefaultConverter, Payload(`"hello"`), &p)
	require.NoError(t, err)
	require.Equal(t, Payload(`"hello"`), p)
}

func Test_AssignValue_RequiresPointer(t *testing.T) {
	var r int
	require.Error(t, AssignValue(DefaultConverter, 1, r))
}
