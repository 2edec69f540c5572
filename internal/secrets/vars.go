package secrets

// Top-level section names of the resolved configuration.
const (
	KeyAnthropicAPIKey = "ANTHROPIC_API_KEY"
	KeyFirebase        = "firebase"
	KeyAdmin           = "admin"
	KeyAWS             = "aws"
	KeyApp             = "app"
)

// Environment variables read or written during resolution.
const (
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	EnvFirebaseConfigJSON = "FIREBASE_CONFIG_JSON"
	EnvAdminEmail         = "ADMIN_EMAIL"
	EnvAdminPassword      = "ADMIN_PASSWORD"
	EnvAdminKey           = "ADMIN_KEY"
	EnvAWSDefaultRegion   = "AWS_DEFAULT_REGION"
	EnvAWSRegion          = "AWS_REGION"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvAppMode            = "APP_MODE"
	EnvAppPort            = "APP_PORT"
	EnvAppHost            = "APP_HOST"
	EnvAppDebug           = "APP_DEBUG"
)

// Defaults for the always-present sections.
const (
	DefaultAWSRegion = "us-east-1"
	DefaultAppMode   = "production"
	DefaultAppPort   = 8501
	DefaultAppHost   = "0.0.0.0"
)

// fieldSource maps a section field to the variable it is read from.
type fieldSource struct {
	field string
	env   string
}

var firebaseFields = []fieldSource{
	{"type", "FIREBASE_TYPE"},
	{"project_id", "FIREBASE_PROJECT_ID"},
	{"private_key_id", "FIREBASE_PRIVATE_KEY_ID"},
	{"private_key", "FIREBASE_PRIVATE_KEY"},
	{"client_email", "FIREBASE_CLIENT_EMAIL"},
	{"client_id", "FIREBASE_CLIENT_ID"},
	{"auth_uri", "FIREBASE_AUTH_URI"},
	{"token_uri", "FIREBASE_TOKEN_URI"},
	{"auth_provider_x509_cert_url", "FIREBASE_AUTH_PROVIDER_CERT_URL"},
	{"client_x509_cert_url", "FIREBASE_CLIENT_CERT_URL"},
	{"web_api_key", "FIREBASE_WEB_API_KEY"},
}

var adminFields = []fieldSource{
	{"email", EnvAdminEmail},
	{"password", EnvAdminPassword},
	{"key", EnvAdminKey},
}

// KnownVariables lists every variable that feeds the resolved configuration,
// in a stable order.
func KnownVariables() []string {
	vars := []string{EnvAnthropicAPIKey, EnvFirebaseConfigJSON}
	for _, f := range firebaseFields {
		vars = append(vars, f.env)
	}
	for _, f := range adminFields {
		vars = append(vars, f.env)
	}
	return append(vars,
		EnvAWSDefaultRegion,
		EnvAWSRegion,
		EnvAWSAccessKeyID,
		EnvAWSSecretAccessKey,
		EnvAppMode,
		EnvAppPort,
		EnvAppHost,
		EnvAppDebug,
	)
}
