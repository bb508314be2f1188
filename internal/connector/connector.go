// Package connector implements the two mailbox connector families behind one
// capability: fetch the most recent messages of a mailbox, normalized into
// RawMessage. The orchestrator depends only on the Connector interface.
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inboxpilot/internal/model"
)

// RawMessage is a fetched message before canonical storage. The provider
// message id is globally unique and becomes the dedup key.
type RawMessage struct {
	ProviderMessageID string
	From              string
	Subject           string
	BodyText          string
	BodyHTML          string
	ReceivedAt        time.Time
	Read              bool
}

type Connector interface {
	Kind() model.MailboxKind
	// FetchRecent returns up to the configured batch cap of recent inbox
	// messages, oldest first. A returned error aborts this mailbox's pass
	// only; per-message parse failures are logged and skipped inside.
	FetchRecent(ctx context.Context, mailbox model.Mailbox) ([]RawMessage, error)
}

// ErrMissingCredentials marks an oauth-provider mailbox whose user never
// completed provider authorization.
var ErrMissingCredentials = errors.New("oauth connection not found")

// ConnectorError is fatal to one mailbox's pass: session failed, auth
// rejected, host unreachable.
type ConnectorError struct {
	Kind model.MailboxKind
	Op   string
	Err  error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s connector: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Factory resolves the connector for a mailbox's kind.
type Factory struct {
	imap  *IMAPConnector
	gmail *GmailConnector
}

func NewFactory(imap *IMAPConnector, gmail *GmailConnector) *Factory {
	return &Factory{imap: imap, gmail: gmail}
}

func (f *Factory) ForMailbox(m model.Mailbox) (Connector, error) {
	switch m.Kind {
	case model.MailboxKindIMAP:
		return f.imap, nil
	case model.MailboxKindGmail:
		return f.gmail, nil
	default:
		return nil, fmt.Errorf("unknown mailbox kind %q", m.Kind)
	}
}
