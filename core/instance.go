package core

type ProcessInstance struct {
	// InstanceID is the ID of the process instance.
	InstanceID string `json:"instance_id,omitempty"`

	// DefinitionID identifies the process definition the instance was created from.
	DefinitionID string `json:"definition_id,omitempty"`
}

func NewProcessInstance(instanceID, definitionID string) *ProcessInstance {
	return &ProcessInstance{
		InstanceID:   instanceID,
		DefinitionID: definitionID,
	}
}

func (pi *ProcessInstance) String() string {
	return pi.DefinitionID + "/" + pi.InstanceID
}
