package core

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
)

type ProcessState int

const (
	ProcessStateCreated ProcessState = iota
	ProcessStateRunning
	ProcessStateFinished
)

var (
	_ sql.Scanner   = (*ProcessState)(nil)
	_ driver.Valuer = ProcessState(0)
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateCreated:
		return "created"
	case ProcessStateRunning:
		return "running"
	case ProcessStateFinished:
		return "finished"
	}

	return fmt.Sprintf("ProcessState(%d)", int(s))
}

func (s ProcessState) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *ProcessState) Scan(value any) error {
	switch v := value.(type) {
	case int64:
		*s = ProcessState(v)
	case int:
		*s = ProcessState(v)
	case []byte:
		var n int
		if _, err := fmt.Sscan(string(v), &n); err != nil {
			return fmt.Errorf("scanning process state: %w", err)
		}
		*s = ProcessState(n)
	default:
		return fmt.Errorf("cannot scan %T into ProcessState", value)
	}

	return nil
}
