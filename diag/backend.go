package diag

import (
	"time"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/core"
	"github.com/cschleiden/go-wfmc/process"
)

// json: serialization in this file is the wire format of the diagnostics API

type ProcessInstanceInfo struct {
	InstanceID   string     `json:"instance_id"`
	DefinitionID string     `json:"definition_id"`
	State        string     `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	WorkflowData *core.Data     `json:"workflow_data,omitempty"`
	Activities   []ActivityInfo `json:"activities,omitempty"`
}

type ActivityInfo struct {
	ID           int            `json:"id"`
	DefinitionID string         `json:"definition_id"`
	WorkItems    []WorkItemInfo `json:"work_items,omitempty"`
}

type WorkItemInfo struct {
	ID          int    `json:"id"`
	Application string `json:"application"`
}

type StatsInfo struct {
	ActiveProcessInstances   int64 `json:"active_process_instances"`
	FinishedProcessInstances int64 `json:"finished_process_instances"`
}

func newProcessInstanceInfo(r *backend.ProcessRecord, s *process.Snapshot) *ProcessInstanceInfo {
	info := &ProcessInstanceInfo{
		InstanceID:   r.Instance.InstanceID,
		DefinitionID: r.Instance.DefinitionID,
		State:        r.State.String(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  r.CompletedAt,
	}

	if s == nil {
		return info
	}

	info.WorkflowData = s.WorkflowData

	for _, a := range s.Activities {
		ai := ActivityInfo{
			ID:           a.ID,
			DefinitionID: a.DefinitionID,
		}

		for _, wi := range a.WorkItems {
			ai.WorkItems = append(ai.WorkItems, WorkItemInfo{ID: wi.ID, Application: wi.Application})
		}

		info.Activities = append(info.Activities, ai)
	}

	return info
}
