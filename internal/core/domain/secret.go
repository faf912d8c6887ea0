package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SecretType is a DuckDB secret type.
type SecretType string

const (
	SecretS3       SecretType = "s3"
	SecretGCS      SecretType = "gcs"
	SecretR2       SecretType = "r2"
	SecretAzure    SecretType = "azure"
	SecretHTTP     SecretType = "http"
	SecretPostgres SecretType = "postgres"
	SecretMySQL    SecretType = "mysql"
)

const (
	ProviderConfig          = "config"
	ProviderCredentialChain = "credential_chain"
)

// Secret is a credential registered with CREATE SECRET. Only the fields
// relevant to Type are rendered.
type Secret struct {
	Name       string     `yaml:"name"`
	Type       SecretType `yaml:"type"`
	Provider   string     `yaml:"provider"`
	Persistent bool       `yaml:"persistent"`
	Scope      string     `yaml:"scope"`

	// s3, gcs, r2
	KeyID        string `yaml:"key_id"`
	Secret       string `yaml:"secret"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	URLStyle     string `yaml:"url_style"`
	UseSSL       *bool  `yaml:"use_ssl"`
	SessionToken string `yaml:"session_token"`
	AccountID    string `yaml:"account_id"`

	// azure
	ConnectionString string `yaml:"connection_string"`
	AccountName      string `yaml:"account_name"`

	// http
	BearerToken string `yaml:"bearer_token"`

	// postgres, mysql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Validate checks the type/provider combination and required fields.
func (s Secret) Validate() error {
	if err := ValidateIdentifier(s.Name); err != nil {
		return fmt.Errorf("secret: %w", err)
	}
	switch s.Provider {
	case "", ProviderConfig, ProviderCredentialChain:
	default:
		return fmt.Errorf("secret %q: unknown provider %q", s.Name, s.Provider)
	}
	chain := s.Provider == ProviderCredentialChain

	switch s.Type {
	case SecretS3, SecretGCS:
		if !chain && (s.KeyID == "" || s.Secret == "") {
			return fmt.Errorf("secret %q: key_id and secret are required for type %s", s.Name, s.Type)
		}
	case SecretR2:
		if s.AccountID == "" {
			return fmt.Errorf("secret %q: account_id is required for type r2", s.Name)
		}
		if !chain && (s.KeyID == "" || s.Secret == "") {
			return fmt.Errorf("secret %q: key_id and secret are required for type r2", s.Name)
		}
	case SecretAzure:
		if !chain && s.ConnectionString == "" {
			return fmt.Errorf("secret %q: connection_string is required for type azure", s.Name)
		}
		if chain && s.AccountName == "" {
			return fmt.Errorf("secret %q: account_name is required with credential_chain", s.Name)
		}
	case SecretHTTP:
		if s.BearerToken == "" {
			return fmt.Errorf("secret %q: bearer_token is required for type http", s.Name)
		}
	case SecretPostgres, SecretMySQL:
		if s.Host == "" || s.Database == "" {
			return fmt.Errorf("secret %q: host and database are required for type %s", s.Name, s.Type)
		}
	case "":
		return fmt.Errorf("secret %q: type is required", s.Name)
	default:
		return fmt.Errorf("secret %q: unknown type %q", s.Name, s.Type)
	}
	return nil
}

// redacted replaces secret material in rendered statements.
const redacted = "'***'"

// CreateSQL renders the CREATE SECRET statement. With redact set, credential
// values are replaced so the statement can be logged or printed.
func (s Secret) CreateSQL(redact bool) string {
	opts := []string{"TYPE " + string(s.Type)}
	if s.Provider != "" && s.Provider != ProviderConfig {
		opts = append(opts, "PROVIDER "+s.Provider)
	}

	add := func(key, val string, sensitive bool) {
		if val == "" {
			return
		}
		lit := QuoteLiteral(val)
		if sensitive && redact {
			lit = redacted
		}
		opts = append(opts, key+" "+lit)
	}

	switch s.Type {
	case SecretS3, SecretGCS, SecretR2:
		add("KEY_ID", s.KeyID, true)
		add("SECRET", s.Secret, true)
		add("SESSION_TOKEN", s.SessionToken, true)
		add("REGION", s.Region, false)
		add("ENDPOINT", s.Endpoint, false)
		add("URL_STYLE", s.URLStyle, false)
		add("ACCOUNT_ID", s.AccountID, false)
		if s.UseSSL != nil {
			opts = append(opts, "USE_SSL "+strconv.FormatBool(*s.UseSSL))
		}
	case SecretAzure:
		add("CONNECTION_STRING", s.ConnectionString, true)
		add("ACCOUNT_NAME", s.AccountName, false)
	case SecretHTTP:
		add("BEARER_TOKEN", s.BearerToken, true)
	case SecretPostgres, SecretMySQL:
		add("HOST", s.Host, false)
		if s.Port != 0 {
			opts = append(opts, "PORT "+strconv.Itoa(s.Port))
		}
		add("DATABASE", s.Database, false)
		add("USER", s.User, false)
		add("PASSWORD", s.Password, true)
	}
	add("SCOPE", s.Scope, false)

	kind := "SECRET"
	if s.Persistent {
		kind = "PERSISTENT SECRET"
	}
	return fmt.Sprintf("CREATE OR REPLACE %s %s (%s)", kind, s.Name, strings.Join(opts, ", "))
}
