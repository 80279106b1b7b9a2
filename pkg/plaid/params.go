package plaid

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for all Plaid dates.
const DateLayout = "2006-01-02"

// Balances carries the point-in-time balance snapshot for an account.
type Balances struct {
	Available       *decimal.Decimal `json:"available"`
	Current         *decimal.Decimal `json:"current"`
	ISOCurrencyCode string           `json:"iso_currency_code"`
}

// Account is an upstream account record.
type Account struct {
	AccountID string   `json:"account_id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Subtype   string   `json:"subtype"`
	Balances  Balances `json:"balances"`
}

// Transaction is an upstream transaction record. Amount keeps the upstream
// sign convention: positive = money out, negative = money in.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Name            string          `json:"name"`
	MerchantName    string          `json:"merchant_name"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode string          `json:"iso_currency_code"`
	Date            string          `json:"date"`
	AuthorizedDate  string          `json:"authorized_date"`
	Category        []string        `json:"category"`
	Pending         bool            `json:"pending"`
}

// Item is the upstream view of a linked connection.
type Item struct {
	ItemID        string `json:"item_id"`
	InstitutionID string `json:"institution_id"`
}

// Institution describes the financial institution behind an item.
type Institution struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
}

// TransactionsQuery parameterizes one page of the transaction feed.
type TransactionsQuery struct {
	StartDate string
	EndDate   string
	Count     int
	Offset    int
}

// TransactionsPage is one page of the transaction feed plus the feed total,
// which the caller uses to decide whether another page remains.
type TransactionsPage struct {
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

// ExchangeResult is the durable credential returned for a public token.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

type accessTokenRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

type institutionRequest struct {
	ClientID      string   `json:"client_id"`
	Secret        string   `json:"secret"`
	InstitutionID string   `json:"institution_id"`
	CountryCodes  []string `json:"country_codes"`
}

type transactionsRequest struct {
	ClientID    string              `json:"client_id"`
	Secret      string              `json:"secret"`
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     transactionsOptions `json:"options"`
}

type transactionsOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
	Item     Item      `json:"item"`
}

type itemResponse struct {
	Item Item `json:"item"`
}

type institutionResponse struct {
	Institution Institution `json:"institution"`
}

type apiError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
}
