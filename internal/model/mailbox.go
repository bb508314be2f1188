package model

import "time"

// MailboxKind discriminates the two connector families.
type MailboxKind string

const (
	MailboxKindIMAP  MailboxKind = "generic-protocol"
	MailboxKindGmail MailboxKind = "oauth-provider"
)

// Mailbox is one connected account. Host/Port/Credential are only set for
// generic-protocol mailboxes; oauth-provider mailboxes resolve credentials
// through the oauth_connections table instead.
type Mailbox struct {
	ID         int64
	OrgID      int64
	UserID     int64
	Kind       MailboxKind
	Address    string
	Host       string
	Port       int
	Credential string // opaque at-rest encoding, unwrapped by the connector
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OAuthConnection is one row per (org, user, provider). Tokens are mutated in
// place whenever the provider rotates them mid-session.
type OAuthConnection struct {
	ID           int64
	OrgID        int64
	UserID       int64
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
	UpdatedAt    time.Time
}

// ApplyRotation merges a token rotation into the connection. Providers may
// omit the refresh token when only the access token rotates; an empty
// incoming refresh token never erases the stored one.
func (c *OAuthConnection) ApplyRotation(accessToken, refreshToken string, expiresAt time.Time) {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.ExpiresAt = expiresAt
}
