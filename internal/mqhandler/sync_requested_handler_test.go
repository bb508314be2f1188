package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/internal/syncer"
)

type stubUserSyncer struct {
	userIDs  []int64
	outcomes []syncer.UserSyncOutcome
	err      error
}

func (s *stubUserSyncer) SyncMailboxesForUser(_ context.Context, userID int64) ([]syncer.UserSyncOutcome, error) {
	s.userIDs = append(s.userIDs, userID)
	return s.outcomes, s.err
}

func TestHandleSyncRequested(t *testing.T) {
	us := &stubUserSyncer{outcomes: []syncer.UserSyncOutcome{
		{Mailbox: model.Mailbox{ID: 1}, Result: &syncer.SyncResult{EmailCount: 2}},
		{Mailbox: model.Mailbox{ID: 2}, Err: errors.New("auth rejected")},
	}}
	h := NewSyncRequestedHandler(us, zap.NewNop())

	err := h.HandleSyncRequested(context.Background(), json.RawMessage(`{"user_id": 7}`))

	assert.NoError(t, err)
	assert.Equal(t, []int64{7}, us.userIDs)
}

func TestHandleSyncRequestedBadPayload(t *testing.T) {
	us := &stubUserSyncer{}
	h := NewSyncRequestedHandler(us, zap.NewNop())

	// malformed payload is the only case worth a nack
	err := h.HandleSyncRequested(context.Background(), json.RawMessage(`{invalid`))

	assert.Error(t, err)
	assert.Empty(t, us.userIDs)
}

func TestHandleSyncRequestedSyncError(t *testing.T) {
	us := &stubUserSyncer{err: errors.New("no such user")}
	h := NewSyncRequestedHandler(us, zap.NewNop())

	// business failures are logged, not redelivered
	err := h.HandleSyncRequested(context.Background(), json.RawMessage(`{"user_id": 7}`))

	assert.NoError(t, err)
}
