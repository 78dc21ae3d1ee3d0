package domain

// RunCause описывает источник запуска.
type RunCause string

const (
	// RunCauseManual — запуск вручную (CLI или POST /runs).
	RunCauseManual RunCause = "manual"
	// RunCauseScheduled — запуск по расписанию.
	RunCauseScheduled RunCause = "scheduled"
)

// RunState состояние оркестратора.
type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateDiscovering RunState = "discovering"
	RunStateProcessing  RunState = "processing"
	RunStateAssembling  RunState = "assembling"
	RunStatePosting     RunState = "posting"
	RunStateDone        RunState = "done"
	RunStateFailed      RunState = "failed"
)
