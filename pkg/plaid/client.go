package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nestfin/nestfin-backend/pkg/config"
	pkgerrors "github.com/nestfin/nestfin-backend/pkg/errors"
	"github.com/nestfin/nestfin-backend/pkg/logger"
)

const (
	sandboxEnv     = "sandbox"
	developmentEnv = "development"
	productionEnv  = "production"

	defaultPageSize = 500
)

var (
	errClientIDRequired = errors.New("plaid client id is required")
	errSecretRequired   = errors.New("plaid secret is required")
	errInvalidPlaidEnv  = fmt.Errorf("plaid environment must be %q, %q or %q", sandboxEnv, developmentEnv, productionEnv)
	errLoggerRequired   = errors.New("plaid logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:     "https://sandbox.plaid.com",
	developmentEnv: "https://development.plaid.com",
	productionEnv:  "https://production.plaid.com",
}

// Client exposes the upstream aggregator primitives with centralized auth,
// per-call timeouts, logging, and error mapping. The access token is never a
// package-level value: callers pass the owning connection's token explicitly.
type Client struct {
	httpClient  *http.Client
	clientID    string
	secret      string
	environment string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the Plaid wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PlaidConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		clientID:    clientID,
		secret:      secret,
		environment: env,
		baseURL:     baseURLs[env],
		logger:      logg,
	}

	logg.Info(ctx, "plaid client initialized")
	return c, nil
}

// Environment reports the normalized Plaid environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ExchangePublicToken trades a short-lived link token for a durable credential.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	if publicToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "public token is required")
	}
	var result ExchangeResult
	err := c.post(ctx, "exchange_public_token", "/item/public_token/exchange", exchangeRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		PublicToken: publicToken,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetItem fetches the upstream view of the connection behind a credential.
func (c *Client) GetItem(ctx context.Context, accessToken string) (*Item, error) {
	var resp itemResponse
	err := c.post(ctx, "get_item", "/item/get", accessTokenRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// GetInstitution resolves an institution id to its display record.
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*Institution, error) {
	var resp institutionResponse
	err := c.post(ctx, "get_institution", "/institutions/get_by_id", institutionRequest{
		ClientID:      c.clientID,
		Secret:        c.secret,
		InstitutionID: institutionID,
		CountryCodes:  []string{"US"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Institution, nil
}

// GetAccounts lists the accounts (with balances) reachable via a credential.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var resp accountsResponse
	err := c.post(ctx, "get_accounts", "/accounts/get", accessTokenRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetTransactions fetches one page of the transaction feed for a date range.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, query TransactionsQuery) (*TransactionsPage, error) {
	count := query.Count
	if count <= 0 {
		count = defaultPageSize
	}
	var page TransactionsPage
	err := c.post(ctx, "get_transactions", "/transactions/get", transactionsRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
		StartDate:   query.StartDate,
		EndDate:     query.EndDate,
		Options: transactionsOptions{
			Count:  count,
			Offset: query.Offset,
		},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// RemoveItem deprovisions the credential upstream, stopping billing and
// webhook traffic for the connection.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	return c.post(ctx, "remove_item", "/item/remove", accessTokenRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &struct{}{})
}

func (c *Client) post(ctx context.Context, op, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encode %s request", op))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op))
	}
	req.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", op, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("plaid %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s response", op))
	}

	if resp.StatusCode != http.StatusOK {
		return c.mapAPIError(ctx, op, resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", op))
	}

	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *Client) mapAPIError(ctx context.Context, op string, status int, raw []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	code := domainCodeForStatus(status)
	if apiErr.ErrorType == "ITEM_ERROR" || apiErr.ErrorCode == "ITEM_LOGIN_REQUIRED" {
		code = pkgerrors.CodeUnauthorized
	}

	c.log(ctx, "error", op, map[string]any{
		"status":     status,
		"error_type": apiErr.ErrorType,
		"error_code": apiErr.ErrorCode,
		"error":      apiErr.ErrorMessage,
	})

	err := pkgerrors.New(code, fmt.Sprintf("plaid %s failed", op))
	if apiErr.ErrorMessage != "" {
		err = err.WithDetails(map[string]any{
			"error_type":    apiErr.ErrorType,
			"error_code":    apiErr.ErrorCode,
			"error_message": apiErr.ErrorMessage,
		})
	}
	return err
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("plaid %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("plaid %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "credential"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, developmentEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidPlaidEnv
	}
}
