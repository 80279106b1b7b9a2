package enums

// WebhookType is the upstream notification's coarse category.
type WebhookType string

const (
	WebhookTypeTransactions WebhookType = "TRANSACTIONS"
	WebhookTypeItem         WebhookType = "ITEM"
	WebhookTypeAuth         WebhookType = "AUTH"
)

var validWebhookTypes = []WebhookType{
	WebhookTypeTransactions,
	WebhookTypeItem,
	WebhookTypeAuth,
}

// String implements fmt.Stringer.
func (w WebhookType) String() string {
	return string(w)
}

// IsValid reports whether the value is known. Unknown types are still
// accepted at the boundary and logged as no-ops.
func (w WebhookType) IsValid() bool {
	for _, candidate := range validWebhookTypes {
		if candidate == w {
			return true
		}
	}
	return false
}
