package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyRotationKeepsRefreshWhenOmitted(t *testing.T) {
	expiry := time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)
	conn := OAuthConnection{
		AccessToken:  "old-access",
		RefreshToken: "stored-refresh",
	}

	// providers often rotate only the access token
	conn.ApplyRotation("new-access", "", expiry)

	assert.Equal(t, "new-access", conn.AccessToken)
	assert.Equal(t, "stored-refresh", conn.RefreshToken)
	assert.Equal(t, expiry, conn.ExpiresAt)
}

func TestApplyRotationReplacesRefreshWhenPresent(t *testing.T) {
	conn := OAuthConnection{
		AccessToken:  "old-access",
		RefreshToken: "stored-refresh",
	}

	conn.ApplyRotation("new-access", "new-refresh", time.Now())

	assert.Equal(t, "new-access", conn.AccessToken)
	assert.Equal(t, "new-refresh", conn.RefreshToken)
}
