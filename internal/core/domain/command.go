package domain

// AdjustCommand asks for a stock delta on one aggregate. CommandID is the
// caller's idempotency key.
type AdjustCommand struct {
	TenantID    string
	AggregateID string
	Delta       int
	CommandID   string
}
