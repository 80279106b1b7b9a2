package enums

import "fmt"

// ItemSyncStatus is the lifecycle state of a linked institution connection.
type ItemSyncStatus string

const (
	ItemSyncStatusActive            ItemSyncStatus = "active"
	ItemSyncStatusError             ItemSyncStatus = "error"
	ItemSyncStatusPendingExpiration ItemSyncStatus = "pending_expiration"
	ItemSyncStatusDisconnected      ItemSyncStatus = "disconnected"
	ItemSyncStatusRemoved           ItemSyncStatus = "removed"
)

var validItemSyncStatuses = []ItemSyncStatus{
	ItemSyncStatusActive,
	ItemSyncStatusError,
	ItemSyncStatusPendingExpiration,
	ItemSyncStatusDisconnected,
	ItemSyncStatusRemoved,
}

// String implements fmt.Stringer.
func (s ItemSyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ItemSyncStatus) IsValid() bool {
	for _, candidate := range validItemSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanAutoTransitionTo reports whether a webhook-driven (non-user) write may
// move the connection from s to next. Disconnected and removed connections
// only come back through an explicit relink.
func (s ItemSyncStatus) CanAutoTransitionTo(next ItemSyncStatus) bool {
	switch s {
	case ItemSyncStatusDisconnected:
		return next == ItemSyncStatusRemoved
	case ItemSyncStatusRemoved:
		return false
	default:
		return true
	}
}

// ParseItemSyncStatus converts raw input into an ItemSyncStatus.
func ParseItemSyncStatus(value string) (ItemSyncStatus, error) {
	for _, candidate := range validItemSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item sync status %q", value)
}
