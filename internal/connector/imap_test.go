package connector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const multipartMessage = "From: sender@example.com\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Status\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--b1--\r\n"

func TestParseMIMEBodyMultipart(t *testing.T) {
	text, html := parseMIMEBody([]byte(multipartMessage))

	assert.Equal(t, "plain body\r\n", text)
	assert.Equal(t, "<p>html body</p>\r\n", html)
}

func TestParseMIMEBodyPlainOnly(t *testing.T) {
	msg := "From: sender@example.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"just text\r\n"

	text, html := parseMIMEBody([]byte(msg))

	assert.Equal(t, "just text\r\n", text)
	assert.Empty(t, html)
}

func TestParseMIMEBodyUnparseableFallsBackToPlain(t *testing.T) {
	raw := []byte("no headers at all, not a MIME message")

	text, html := parseMIMEBody(raw)

	assert.Equal(t, string(raw), text)
	assert.Empty(t, html)
}

func TestParseMIMEBodyFirstPartWins(t *testing.T) {
	msg := strings.Replace(multipartMessage, "<p>html body</p>", "second plain", 1)
	msg = strings.Replace(msg, "Content-Type: text/html; charset=utf-8", "Content-Type: text/plain; charset=utf-8", 1)

	text, _ := parseMIMEBody([]byte(msg))

	assert.Equal(t, "plain body\r\n", text)
}
