package connector

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/metrics"
)

const gmailProvider = "google"

// OAuthStore reads the stored connection for (org, user, provider); nil when
// the user never authorized the provider.
type OAuthStore interface {
	Find(ctx context.Context, orgID, userID int64, provider string) (*model.OAuthConnection, error)
}

// TokenStore persists rotated tokens. The implementation must merge: an empty
// refresh token in the update keeps the previously stored one.
type TokenStore interface {
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
}

// GmailConnector is the oauth-provider connector. Token rotation is observed
// through the token source during the fetch and persisted immediately; a
// failed persist is logged and never aborts the in-flight fetch.
type GmailConnector struct {
	oauthCfg  *oauth2.Config
	store     OAuthStore
	tokens    TokenStore
	batchSize int
	logger    *zap.Logger
}

func NewGmailConnector(clientID, clientSecret string, store OAuthStore, tokens TokenStore, batchSize int, log *zap.Logger) *GmailConnector {
	return &GmailConnector{
		oauthCfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{gmail.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		store:     store,
		tokens:    tokens,
		batchSize: batchSize,
		logger:    log,
	}
}

func (c *GmailConnector) Kind() model.MailboxKind {
	return model.MailboxKindGmail
}

// FetchRecent lists the most recent inbox message ids, then fetches each in
// full. N+1 round trips for N messages, so the batch cap bounds the cost.
func (c *GmailConnector) FetchRecent(ctx context.Context, mailbox model.Mailbox) (messages []RawMessage, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordConnectorFetchLatency(string(c.Kind()), status, time.Since(start))
	}()

	conn, err := c.store.Find(ctx, mailbox.OrgID, mailbox.UserID, gmailProvider)
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "load oauth connection", Err: err}
	}
	if conn == nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "load oauth connection", Err: ErrMissingCredentials}
	}

	log := logger.WithTrace(ctx, c.logger)

	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.ExpiresAt,
	}

	// 观察到 token 轮换就立刻落库；落库失败只告警，绝不打断抓取
	source := &notifyingTokenSource{
		base:       c.oauthCfg.TokenSource(ctx, token),
		lastAccess: conn.AccessToken,
		onRotate: func(rotated *oauth2.Token) {
			conn.ApplyRotation(rotated.AccessToken, rotated.RefreshToken, rotated.Expiry)
			if err := c.tokens.UpdateTokens(ctx, conn.ID, rotated.AccessToken, rotated.RefreshToken, rotated.Expiry); err != nil {
				log.Warn("Failed to persist rotated oauth tokens",
					zap.Int64("connection_id", conn.ID),
					zap.Error(err),
				)
				return
			}
			log.Info("Persisted rotated oauth tokens",
				zap.Int64("connection_id", conn.ID),
				zap.Time("expires_at", rotated.Expiry),
			)
		},
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "build client", Err: err}
	}

	list, err := svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(int64(c.batchSize)).
		Context(ctx).Do()
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "list messages", Err: err}
	}

	for _, ref := range list.Messages {
		full, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			// 单封拉取失败：跳过，不中断批次
			log.Warn("Skipping unfetchable message",
				zap.Int64("mailbox_id", mailbox.ID),
				zap.String("gmail_id", ref.Id),
				zap.Error(err),
			)
			continue
		}
		messages = append(messages, convertGmailMessage(full, log))
	}

	// List 返回最新在前；按旧到新处理
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func convertGmailMessage(msg *gmail.Message, log *zap.Logger) RawMessage {
	raw := RawMessage{
		ProviderMessageID: msg.Id,
		ReceivedAt:        time.UnixMilli(msg.InternalDate),
		Read:              true,
	}

	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			raw.Read = false
		}
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				raw.From = h.Value
			case "Subject":
				raw.Subject = h.Value
			}
		}
		extractGmailBody(msg.Payload, &raw, log)
	}

	return raw
}

// extractGmailBody walks the multipart structure recursively; the first
// matching part of each content type wins.
func extractGmailBody(part *gmail.MessagePart, raw *RawMessage, log *zap.Logger) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeGmailData(part.Body.Data)
		if err != nil {
			log.Warn("Failed to decode message body part",
				zap.String("gmail_id", raw.ProviderMessageID),
				zap.String("mime_type", part.MimeType),
				zap.Error(err),
			)
		} else {
			switch part.MimeType {
			case "text/plain":
				if raw.BodyText == "" {
					raw.BodyText = string(data)
				}
			case "text/html":
				if raw.BodyHTML == "" {
					raw.BodyHTML = string(data)
				}
			}
		}
	}

	for _, p := range part.Parts {
		extractGmailBody(p, raw, log)
	}
}

// decodeGmailData decodes body data from the API, which is base64url without
// padding; padded input is accepted too.
func decodeGmailData(data string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(data)
}

// notifyingTokenSource wraps an oauth2.TokenSource and invokes onRotate
// exactly once per observed access-token change, synchronously, so the
// persistence step is an ordinary call rather than a callback racing the
// fetch.
type notifyingTokenSource struct {
	base     oauth2.TokenSource
	onRotate func(*oauth2.Token)

	mu         sync.Mutex
	lastAccess string
}

func (s *notifyingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rotated := tok.AccessToken != s.lastAccess
	if rotated {
		s.lastAccess = tok.AccessToken
	}
	s.mu.Unlock()

	if rotated && s.onRotate != nil {
		s.onRotate(tok)
	}
	return tok, nil
}
