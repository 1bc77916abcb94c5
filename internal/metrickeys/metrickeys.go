package metrickeys

const (
	Prefix = "wfmc."

	// Processes
	ProcessCreated  = Prefix + "process.created"
	ProcessStarted  = Prefix + "process.started"
	ProcessFinished = Prefix + "process.finished"
	ProcessRestored = Prefix + "process.restored"

	ProcessCacheSize     = Prefix + "process.cache.size"
	ProcessCacheEviction = Prefix + "process.cache.eviction"

	// Activities
	ActivityStarted  = Prefix + "activity.started"
	ActivityFinished = Prefix + "activity.finished"

	// Work items
	WorkItemDispatched = Prefix + "workitem.dispatched"
	WorkItemFinished   = Prefix + "workitem.finished"

	// Worker
	WorkerTaskProcessed = Prefix + "worker.task.processed"
	WorkerTaskDuration  = Prefix + "worker.task.duration"
	WorkerQueueSize     = Prefix + "worker.queue.size"

	// Engine
	EngineOperation = Prefix + "engine.operation"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	// Reason for evicting an entry from the process cache
	EvictionReason = "reason"

	DefinitionID = "definition"
	Application  = "application"
	Operation    = "operation"
	Status       = "status"
)
