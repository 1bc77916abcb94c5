package log

const (
	NamespaceKey = "wfmc"

	InstanceIDKey   = NamespaceKey + ".process.instance_id"
	DefinitionIDKey = NamespaceKey + ".process.definition_id"
	ProcessStateKey = NamespaceKey + ".process.state"

	ActivityIDKey           = NamespaceKey + ".activity.id"
	ActivityDefinitionIDKey = NamespaceKey + ".activity.definition_id"

	TransitionFromKey = NamespaceKey + ".transition.from"
	TransitionToKey   = NamespaceKey + ".transition.to"

	WorkItemIDKey  = NamespaceKey + ".workitem.id"
	ApplicationKey = NamespaceKey + ".workitem.application"
	PerformerKey   = NamespaceKey + ".workitem.performer"

	EventTypeKey = NamespaceKey + ".event.type"

	WorkerNameKey = NamespaceKey + ".worker.name"
	AttemptKey    = NamespaceKey + ".attempt"
	DurationKey   = NamespaceKey + ".duration_ms"
)
