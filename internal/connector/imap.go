package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/metrics"
)

// IMAPConnector is the generic-protocol connector: a stateful session against
// the mailbox's configured host/port with the stored credential.
type IMAPConnector struct {
	batchSize int
	unwrap    CredentialUnwrapper
	logger    *zap.Logger
}

func NewIMAPConnector(batchSize int, unwrap CredentialUnwrapper, log *zap.Logger) *IMAPConnector {
	return &IMAPConnector{
		batchSize: batchSize,
		unwrap:    unwrap,
		logger:    log,
	}
}

func (c *IMAPConnector) Kind() model.MailboxKind {
	return model.MailboxKindIMAP
}

// FetchRecent opens a session, selects INBOX and fetches the newest messages
// by sequence range. Connection and auth failures abort the pass; a single
// unparseable message is logged and skipped.
func (c *IMAPConnector) FetchRecent(ctx context.Context, mailbox model.Mailbox) (messages []RawMessage, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordConnectorFetchLatency(string(c.Kind()), status, time.Since(start))
	}()

	password, err := c.unwrap.Unwrap(mailbox.Credential)
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "unwrap credential", Err: err}
	}

	addr := fmt.Sprintf("%s:%d", mailbox.Host, mailbox.Port)

	var client *imapclient.Client
	if mailbox.Port == 143 {
		client, err = imapclient.DialStartTLS(addr, nil)
	} else {
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "dial " + addr, Err: err}
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(mailbox.Address, password).Wait(); err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "login " + mailbox.Address, Err: err}
	}

	sel, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		return nil, &ConnectorError{Kind: c.Kind(), Op: "select INBOX", Err: err}
	}

	total := sel.NumMessages
	if total == 0 {
		return nil, nil
	}

	// 最近 N 封：按序列号区间抓取
	from := uint32(1)
	if total > uint32(c.batchSize) {
		from = total - uint32(c.batchSize) + 1
	}
	var seqSet imap.SeqSet
	seqSet.AddRange(from, total)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	log := logger.WithTrace(ctx, c.logger)

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			// 单封解析失败：记录并跳过，不中断批次
			log.Warn("Skipping unparseable message",
				zap.Int64("mailbox_id", mailbox.ID),
				zap.Error(err),
			)
			continue
		}

		messages = append(messages, c.toRawMessage(mailbox, buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, &ConnectorError{Kind: c.Kind(), Op: "fetch", Err: err}
	}

	return messages, nil
}

func (c *IMAPConnector) toRawMessage(mailbox model.Mailbox, buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) RawMessage {
	raw := RawMessage{
		ReceivedAt: buf.InternalDate,
	}

	if buf.Envelope != nil {
		raw.ProviderMessageID = buf.Envelope.MessageID
		raw.Subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			raw.From = buf.Envelope.From[0].Addr()
		}
		if raw.ReceivedAt.IsZero() {
			raw.ReceivedAt = buf.Envelope.Date
		}
	}
	if raw.ProviderMessageID == "" {
		// 没有 Message-ID 的服务器：退化为邮箱地址+UID
		raw.ProviderMessageID = fmt.Sprintf("%s/%d", mailbox.Address, buf.UID)
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			raw.Read = true
		}
	}

	if body := buf.FindBodySection(section); body != nil {
		raw.BodyText, raw.BodyHTML = parseMIMEBody(body)
	}

	return raw
}

// parseMIMEBody extracts the text/plain and text/html parts of a raw RFC 822
// message. A body that cannot be parsed at all is treated as plain text.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
