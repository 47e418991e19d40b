// Package config holds the per-account configuration the IMAP monitor is
// constructed with. An AccountConfig describes a single personal mailbox
// and is supplied by the caller at construction time -- there is no
// account registry or admin API in scope.
package config

// AuthMethod selects how the monitor authenticates an IMAP session.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthOAuth2   AuthMethod = "oauth2"
)

// Provider identifies a known mail host, used only to seed IMAP connection
// defaults; it carries no credential-fetching behavior.
type Provider string

const (
	ProviderICloud  Provider = "icloud"
	ProviderOutlook Provider = "outlook"
	ProviderGmail   Provider = "gmail"
	ProviderCustom  Provider = "custom"
)

// AccountConfig describes one IMAP account the monitor manages.
type AccountConfig struct {
	ID          string
	DisplayName string
	IMAPServer  string
	IMAPPort    int
	Username    string
	UseTLS      bool
	AuthMethod  AuthMethod
}

const defaultIMAPPort = 993

// NewAccountConfig builds an AccountConfig for a known provider preset,
// filling in host/port/auth defaults; Custom requires the caller to supply
// IMAPServer and IMAPPort explicitly afterward.
func NewAccountConfig(id, displayName, username string, provider Provider) AccountConfig {
	cfg := AccountConfig{
		ID:          id,
		DisplayName: displayName,
		Username:    username,
		IMAPPort:    defaultIMAPPort,
		UseTLS:      true,
		AuthMethod:  AuthPassword,
	}

	switch provider {
	case ProviderICloud:
		cfg.IMAPServer = "imap.mail.me.com"
	case ProviderOutlook:
		cfg.IMAPServer = "outlook.office365.com"
		cfg.AuthMethod = AuthOAuth2
	case ProviderGmail:
		cfg.IMAPServer = "imap.gmail.com"
		cfg.AuthMethod = AuthOAuth2
	case ProviderCustom:
		// caller fills in IMAPServer/IMAPPort/AuthMethod
	}

	return cfg
}
