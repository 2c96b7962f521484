package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldStudentID = "student_id"
	FieldStaffID   = "staff_id"
	FieldPeriod    = "period"
	FieldBatchID   = "batch_id"
	FieldTxnID     = "txn_id"
	FieldKind      = "kind"
	FieldAmount    = "amount"
	FieldCount     = "count"
	FieldFile      = "file"
)

// Component names
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentPayroll  = "payroll"
	ComponentStorage  = "storage"
	ComponentImporter = "importer"
)
