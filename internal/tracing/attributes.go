package tracing

const (
	ProcessInstanceID   = "process.instance_id"
	ProcessDefinitionID = "process.definition_id"

	ActivityID           = "activity.id"
	ActivityDefinitionID = "activity.definition_id"

	WorkItemID  = "workitem.id"
	Application = "workitem.application"
)
