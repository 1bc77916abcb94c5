package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_newKeys(t *testing.T) {
	t.Run("WithEmptyPrefix", func(t *testing.T) {
		k := newKeys("")
		require.Empty(t, k.prefix)
		require.Equal(t, "instance:abc", k.instanceKey("abc"))
	})

	t.Run("WithNonEmptyPrefixWithoutColon", func(t *testing.T) {
		k := newKeys("prefix")
		require.Equal(t, "prefix:", k.prefix)
		require.Equal(t, "prefix:instances-active", k.instancesActive())
	})

	t.Run("WithNonEmptyPrefixWithColon", func(t *testing.T) {
		k := newKeys("prefix:")
		require.Equal(t, "prefix:", k.prefix)
		require.Equal(t, "prefix:instance:abc", k.instanceKey("abc"))
	})
}
