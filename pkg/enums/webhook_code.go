package enums

// WebhookCode is the upstream notification's specific event within a type.
type WebhookCode string

const (
	WebhookCodeInitialUpdate       WebhookCode = "INITIAL_UPDATE"
	WebhookCodeHistoricalUpdate    WebhookCode = "HISTORICAL_UPDATE"
	WebhookCodeDefaultUpdate       WebhookCode = "DEFAULT_UPDATE"
	WebhookCodeTransactionsRemoved WebhookCode = "TRANSACTIONS_REMOVED"
	WebhookCodeError               WebhookCode = "ERROR"
	WebhookCodePendingExpiration   WebhookCode = "PENDING_EXPIRATION"
	WebhookCodePermissionRevoked   WebhookCode = "USER_PERMISSION_REVOKED"
	WebhookCodeUpdateAcknowledged  WebhookCode = "WEBHOOK_UPDATE_ACKNOWLEDGED"
)

// String implements fmt.Stringer.
func (w WebhookCode) String() string {
	return string(w)
}
