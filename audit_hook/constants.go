package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated = "subscription.created"
	ActionSubscriptionCopied  = "subscription.copied"
	ActionSubscriptionDone    = "subscription.done"

	// Workflow actions
	ActionTransition    = "subscription.transition"
	ActionConfirmFailed = "subscription.confirm_failed"

	// Document actions
	ActionSaleProcessed = "sale.processed"
	ActionInvoicePosted = "invoice.posted"

	// Recurrence actions
	ActionRecurrence       = "recurrence.tick"
	ActionRecurrenceFailed = "recurrence.failed"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceSale         = "sale"
	ResourceInvoice      = "invoice"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryBilling      = "billing"
	CategoryScheduling   = "scheduling"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
