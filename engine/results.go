package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cschleiden/go-wfmc/converter"
)

// GetProcessResult waits for the process to finish and returns the value of its output parameter
// at index, decoded into T.
func GetProcessResult[T any](ctx context.Context, e *Engine, instanceID string, index int, timeout time.Duration) (T, error) {
	if err := e.WaitForProcess(ctx, instanceID, timeout); err != nil {
		return *new(T), fmt.Errorf("process did not finish in time: %w", err)
	}

	results, err := e.GetProcessResults(ctx, instanceID)
	if err != nil {
		return *new(T), err
	}

	if index < 0 || index >= len(results) {
		return *new(T), fmt.Errorf("process has %d results, requested result %d", len(results), index)
	}

	var r T
	if err := converter.AssignValue(e.backend.Options().Converter, results[index], &r); err != nil {
		return *new(T), fmt.Errorf("converting result: %w", err)
	}

	return r, nil
}
