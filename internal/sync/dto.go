package sync

// AccountSyncResult reports one balance refresh.
type AccountSyncResult struct {
	ItemID   string `json:"item_id"`
	Accounts int    `json:"accounts"`
}

// TransactionSyncResult reports one transaction sync, including the partial
// failure split: a batch can land most of its chunks and still report the
// rest as failed.
type TransactionSyncResult struct {
	ItemID   string `json:"item_id"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

// RemovalResult reports a transaction removal. Deleted can be smaller than
// the requested ref count; refs unknown locally are not an error.
type RemovalResult struct {
	ItemID    string `json:"item_id"`
	Requested int    `json:"requested"`
	Deleted   int    `json:"deleted"`
}
