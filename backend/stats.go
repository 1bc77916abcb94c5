package backend

type Stats struct {
	// ActiveProcessInstances are the number of instances that have not finished yet
	ActiveProcessInstances int64

	// FinishedProcessInstances are the number of finished instances that have not been removed
	FinishedProcessInstances int64
}
