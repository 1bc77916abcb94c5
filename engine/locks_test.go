package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_instanceLocks(t *testing.T) {
	il := newInstanceLocks()

	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := il.Lock("instance")
			defer unlock()

			counter++
		}()
	}

	wg.Wait()

	require.Equal(t, 50, counter)
	require.Zero(t, il.len())
}

func Test_instanceLocks_IndependentInstances(t *testing.T) {
	il := newInstanceLocks()

	unlockA := il.Lock("a")
	unlockB := il.Lock("b")
	require.Equal(t, 2, il.len())

	unlockA()
	unlockB()
	require.Zero(t, il.len())
}
