package app

// OperationRecord tracks a CLI operation that may mutate the store.
// Operations are created in memory with ID=0. Only store-mutating commands
// persist them (giving them an auto-increment ID from the store).
type OperationRecord struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperationRecord creates a new in-memory operation record.
func NewOperationRecord(operation, parameters string) *OperationRecord {
	return &OperationRecord{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the store.
func (op *OperationRecord) Persisted() bool {
	return op.ID != 0
}
