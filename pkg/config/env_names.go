package config

// EnvPrefix scopes every envconfig variable.
const EnvPrefix = "NESTFIN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "NESTFIN_APP_ENV"
	EnvPort   = "NESTFIN_APP_PORT"

	EnvDBDSN  = "NESTFIN_DB_DSN"
	EnvDBHost = "NESTFIN_DB_HOST"
	EnvDBUser = "NESTFIN_DB_USER"
	EnvDBName = "NESTFIN_DB_NAME"

	EnvRedisURL = "NESTFIN_REDIS_URL"

	EnvPlaidClientID = "NESTFIN_PLAID_CLIENT_ID"
	EnvPlaidSecret   = "NESTFIN_PLAID_SECRET"
	EnvPlaidEnv      = "NESTFIN_PLAID_ENV"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
