package enums

import "fmt"

// AccountType mirrors the upstream aggregator's account classification.
type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

var validAccountTypes = []AccountType{
	AccountTypeDepository,
	AccountTypeCredit,
	AccountTypeInvestment,
	AccountTypeLoan,
	AccountTypeOther,
}

// String implements fmt.Stringer.
func (a AccountType) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AccountType) IsValid() bool {
	for _, candidate := range validAccountTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccountType converts raw input into an AccountType, defaulting to
// other for values the upstream adds later.
func ParseAccountType(value string) (AccountType, error) {
	for _, candidate := range validAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account type %q", value)
}

// NormalizeAccountType maps unknown upstream types onto other.
func NormalizeAccountType(value string) AccountType {
	if parsed, err := ParseAccountType(value); err == nil {
		return parsed
	}
	return AccountTypeOther
}
