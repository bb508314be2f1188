package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inboxpilot/internal/model"
	"inboxpilot/internal/syncer"
)

type MailboxFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Mailbox, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type MailboxSyncer interface {
	SyncMailbox(ctx context.Context, mailbox model.Mailbox, user model.User) (*syncer.SyncResult, error)
	SyncMailboxesForUser(ctx context.Context, userID int64) ([]syncer.UserSyncOutcome, error)
}

// SyncHandler exposes the on-demand sync entry points. The scheduled path is
// log-only; these endpoints surface one aggregate error per mailbox to the
// caller.
type SyncHandler struct {
	syncer    MailboxSyncer
	mailboxes MailboxFinder
	users     UserFinder
}

func NewSyncHandler(s MailboxSyncer, mailboxes MailboxFinder, users UserFinder) *SyncHandler {
	return &SyncHandler{syncer: s, mailboxes: mailboxes, users: users}
}

type mailboxSyncResponse struct {
	MailboxID  int64          `json:"mailbox_id"`
	Address    string         `json:"address"`
	EmailCount int            `json:"email_count"`
	Emails     []emailSummary `json:"emails,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type emailSummary struct {
	ID         int64  `json:"id"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Category   string `json:"category,omitempty"`
	ReceivedAt string `json:"received_at"`
}

// SyncAll handles POST /sync: one pass over every active mailbox of the
// authenticated user.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	outcomes, err := h.syncer.SyncMailboxesForUser(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
		return
	}

	results := make([]mailboxSyncResponse, 0, len(outcomes))
	for _, outcome := range outcomes {
		results = append(results, toResponse(outcome))
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SyncOne handles POST /sync/:mailboxID for a single mailbox the caller owns.
func (h *SyncHandler) SyncOne(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	mailboxID, err := strconv.ParseInt(c.Param("mailboxID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mailbox id"})
		return
	}

	mailbox, err := h.mailboxes.FindByID(c.Request.Context(), mailboxID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "mailbox not found"})
		return
	}
	if mailbox.UserID != userID.(int64) {
		c.JSON(http.StatusForbidden, gin.H{"error": "mailbox not owned by user"})
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	result, err := h.syncer.SyncMailbox(c.Request.Context(), *mailbox, *user)
	if err != nil {
		if errors.Is(err, syncer.ErrPassInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
			return
		}
		c.JSON(http.StatusBadGateway, toResponse(syncer.UserSyncOutcome{Mailbox: *mailbox, Err: err}))
		return
	}

	c.JSON(http.StatusOK, toResponse(syncer.UserSyncOutcome{Mailbox: *mailbox, Result: result}))
}

func toResponse(outcome syncer.UserSyncOutcome) mailboxSyncResponse {
	resp := mailboxSyncResponse{
		MailboxID: outcome.Mailbox.ID,
		Address:   outcome.Mailbox.Address,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
		return resp
	}
	if outcome.Result != nil {
		resp.EmailCount = outcome.Result.EmailCount
		for _, e := range outcome.Result.Emails {
			summary := emailSummary{
				ID:         e.ID,
				From:       e.From,
				Subject:    e.Subject,
				ReceivedAt: e.ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			if e.Category != nil {
				summary.Category = string(*e.Category)
			}
			resp.Emails = append(resp.Emails, summary)
		}
	}
	return resp
}
