package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
)

// storedRecord is the value stored in the instances bucket. Times are unix milliseconds.
type storedRecord struct {
	InstanceID   string            `json:"instance_id"`
	DefinitionID string            `json:"definition_id"`
	State        core.ProcessState `json:"state"`
	Snapshot     []byte            `json:"snapshot,omitempty"`
	CreatedAt    int64             `json:"created_at"`
	UpdatedAt    int64             `json:"updated_at"`
	CompletedAt  *int64            `json:"completed_at,omitempty"`
}

func marshalRecord(r *backend.ProcessRecord) ([]byte, error) {
	sr := &storedRecord{
		InstanceID:   r.Instance.InstanceID,
		DefinitionID: r.Instance.DefinitionID,
		State:        r.State,
		Snapshot:     r.Snapshot,
		CreatedAt:    r.CreatedAt.UnixMilli(),
		UpdatedAt:    r.UpdatedAt.UnixMilli(),
	}

	if r.CompletedAt != nil {
		ms := r.CompletedAt.UnixMilli()
		sr.CompletedAt = &ms
	}

	return json.Marshal(sr)
}

func unmarshalRecord(data []byte) (*backend.ProcessRecord, error) {
	var sr storedRecord
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("unmarshaling process record: %w", err)
	}

	r := &backend.ProcessRecord{
		Instance:  core.NewProcessInstance(sr.InstanceID, sr.DefinitionID),
		State:     sr.State,
		CreatedAt: time.UnixMilli(sr.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(sr.UpdatedAt).UTC(),
	}

	if len(sr.Snapshot) > 0 {
		r.Snapshot = append([]byte(nil), sr.Snapshot...)
	}

	if sr.CompletedAt != nil {
		t := time.UnixMilli(*sr.CompletedAt).UTC()
		r.CompletedAt = &t
	}

	return r, nil
}

// finishedKey returns the key of an instance in the finished index. Keys sort by completion time.
func finishedKey(completedAt time.Time, instanceID string) []byte {
	k := make([]byte, 8, 8+len(instanceID))
	binary.BigEndian.PutUint64(k, uint64(completedAt.UnixMilli()))

	return append(k, instanceID...)
}

// unmarshalFinishedKey returns the completion time in unix milliseconds and instance id of a finished
// index key.
func unmarshalFinishedKey(k []byte) (int64, string, error) {
	if len(k) < 8 {
		return 0, "", fmt.Errorf("data is corrupt, expected at least 8 bytes, got %d", len(k))
	}

	return int64(binary.BigEndian.Uint64(k[:8])), string(k[8:]), nil
}
