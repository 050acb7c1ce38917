package constants

// InvoiceStatus is the canonical status for rows in invoices.
type InvoiceStatus string

// Stable values (store these exact strings in DB).
const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusProcessed InvoiceStatus = "processed" // stock movements written
	InvoiceStatusFailed    InvoiceStatus = "failed"
)

// JobStatus tracks a document in batch extraction.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusExtracted JobStatus = "EXTRACTED"
	JobStatusRejected  JobStatus = "REJECTED" // input gate
	JobStatusFailed    JobStatus = "FAILED"
)

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

type DiscrepancyType string

const (
	DiscrepancyCreateNew DiscrepancyType = "CREATE_NEW"
)

// RecognitionPath names which recognizer produced the text of a session.
type RecognitionPath string

const (
	PathPrimary   RecognitionPath = "primary"
	PathSecondary RecognitionPath = "secondary"
)
