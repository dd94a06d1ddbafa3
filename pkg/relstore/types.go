package relstore

import "time"

// InvestigationStatus mirrors the orchestrator state machine.
type InvestigationStatus string

const (
	StatusPending         InvestigationStatus = "PENDING"
	StatusAnalystRunning  InvestigationStatus = "ANALYST_RUNNING"
	StatusProcessing      InvestigationStatus = "PROCESSING"
	StatusCompleted       InvestigationStatus = "COMPLETED"
	StatusFailed          InvestigationStatus = "FAILED"
	StatusSuspended       InvestigationStatus = "SUSPENDED"
)

// Investigation is one user prompt and the bounded chain of cycles, work
// orders, and assessments spawned from it.
type Investigation struct {
	ID                    string
	Prompt                string
	Status                InvestigationStatus
	ParentInvestigationID *string
	CycleCount            int
	CreatedAt             time.Time
	CompletedAt           *time.Time
	SuspendedReason       *string
	SuspendedAt           *time.Time
	ResumeFrom            *string
}

// WorkOrderStatus tracks a work order through the queue's dequeue
// protocol.
type WorkOrderStatus string

const (
	WorkOrderQueued     WorkOrderStatus = "queued"
	WorkOrderProcessing WorkOrderStatus = "processing"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderFailed     WorkOrderStatus = "failed"
)

// WorkOrder is one unit of Processor work within a cycle.
type WorkOrder struct {
	ID                  string
	InvestigationID     string
	Objective           string
	Status              WorkOrderStatus
	Priority            int
	ReferencedEntities  []string
	SourceGuidance      map[string]any
	ProcessorID         *string
	CreatedAt           time.Time
	CompletedAt         *time.Time
	Cycle               int
	ClaimsProducedCount int
	RetryCount          int
}

// Assessment is the Analyst's terminal deliverable for an investigation.
type Assessment struct {
	ID              string
	InvestigationID string
	Content         map[string]any
	Confidence      float64
	EntityRefs      []string
	ClaimRefs       []string
	Embedding       []float32
	CreatedAt       time.Time
}
