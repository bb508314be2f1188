package connector

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"

	"inboxpilot/internal/model"
)

type stubTokenSource struct {
	tokens []*oauth2.Token
	err    error
	calls  int
}

func (s *stubTokenSource) Token() (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	tok := s.tokens[s.calls]
	if s.calls < len(s.tokens)-1 {
		s.calls++
	}
	return tok, nil
}

func TestNotifyingTokenSourceFiresOncePerRotation(t *testing.T) {
	rotated := &oauth2.Token{AccessToken: "new", RefreshToken: "new-refresh", Expiry: time.Now().Add(time.Hour)}
	base := &stubTokenSource{tokens: []*oauth2.Token{rotated}}

	var notified []*oauth2.Token
	source := &notifyingTokenSource{
		base:       base,
		lastAccess: "old",
		onRotate:   func(tok *oauth2.Token) { notified = append(notified, tok) },
	}

	// first call observes the change
	tok, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	require.Len(t, notified, 1)
	assert.Equal(t, rotated, notified[0])

	// same token again: no second notification
	_, err = source.Token()
	require.NoError(t, err)
	assert.Len(t, notified, 1)
}

func TestNotifyingTokenSourceUnchangedToken(t *testing.T) {
	base := &stubTokenSource{tokens: []*oauth2.Token{{AccessToken: "same"}}}

	fired := false
	source := &notifyingTokenSource{
		base:       base,
		lastAccess: "same",
		onRotate:   func(*oauth2.Token) { fired = true },
	}

	_, err := source.Token()
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestNotifyingTokenSourcePropagatesError(t *testing.T) {
	source := &notifyingTokenSource{base: &stubTokenSource{err: errors.New("refresh rejected")}}

	_, err := source.Token()
	assert.Error(t, err)
}

type stubOAuthStore struct {
	conn *model.OAuthConnection
	err  error
}

func (s *stubOAuthStore) Find(context.Context, int64, int64, string) (*model.OAuthConnection, error) {
	return s.conn, s.err
}

type stubTokenStore struct{}

func (stubTokenStore) UpdateTokens(context.Context, int64, string, string, time.Time) error {
	return nil
}

func TestGmailFetchRecentWithoutConnection(t *testing.T) {
	c := NewGmailConnector("id", "secret", &stubOAuthStore{}, stubTokenStore{}, 50, zap.NewNop())

	_, err := c.FetchRecent(context.Background(), model.Mailbox{ID: 1, OrgID: 1, UserID: 5, Kind: model.MailboxKindGmail})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	var connErr *ConnectorError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, model.MailboxKindGmail, connErr.Kind)
}

func TestGmailFetchRecentStoreError(t *testing.T) {
	c := NewGmailConnector("id", "secret", &stubOAuthStore{err: errors.New("db down")}, stubTokenStore{}, 50, zap.NewNop())

	_, err := c.FetchRecent(context.Background(), model.Mailbox{Kind: model.MailboxKindGmail})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredentials)
}

// the API serves body data as base64url without padding
func gmailBody(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte(s))}
}

func TestConvertGmailMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:           "gmail-abc",
		InternalDate: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC).UnixMilli(),
		LabelIds:     []string{"INBOX", "UNREAD"},
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "sender@example.com"},
				{Name: "Subject", Value: "Quarterly numbers"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: gmailBody("plain body")},
				{MimeType: "text/html", Body: gmailBody("<p>html body</p>")},
			},
		},
	}

	raw := convertGmailMessage(msg, zap.NewNop())

	assert.Equal(t, "gmail-abc", raw.ProviderMessageID)
	assert.Equal(t, "sender@example.com", raw.From)
	assert.Equal(t, "Quarterly numbers", raw.Subject)
	assert.Equal(t, "plain body", raw.BodyText)
	assert.Equal(t, "<p>html body</p>", raw.BodyHTML)
	assert.False(t, raw.Read)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), raw.ReceivedAt.UTC())
}

func TestConvertGmailMessageReadWithoutUnreadLabel(t *testing.T) {
	raw := convertGmailMessage(&gmail.Message{Id: "x", LabelIds: []string{"INBOX"}}, zap.NewNop())
	assert.True(t, raw.Read)
}

func TestExtractGmailBodyFirstMatchWins(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: gmailBody("first")},
			{MimeType: "text/plain", Body: gmailBody("second")},
		},
	}

	var raw RawMessage
	extractGmailBody(part, &raw, zap.NewNop())
	assert.Equal(t, "first", raw.BodyText)
}

func TestDecodeGmailDataPaddingVariants(t *testing.T) {
	// "hello" encodes with one padding char when padded
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("hello"))
	padded := base64.URLEncoding.EncodeToString([]byte("hello"))

	for _, data := range []string{unpadded, padded} {
		b, err := decodeGmailData(data)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))
	}

	_, err := decodeGmailData("!!!not base64!!!")
	assert.Error(t, err)
}

func TestExtractGmailBodyUnpaddedData(t *testing.T) {
	part := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("hello"))},
	}

	var raw RawMessage
	extractGmailBody(part, &raw, zap.NewNop())
	assert.Equal(t, "hello", raw.BodyText)
}
