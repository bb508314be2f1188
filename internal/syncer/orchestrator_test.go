package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/internal/classifier"
	"inboxpilot/internal/connector"
	"inboxpilot/internal/events"
	"inboxpilot/internal/model"
)

type fakeConnector struct {
	kind     model.MailboxKind
	messages []connector.RawMessage
	err      error
}

func (f *fakeConnector) Kind() model.MailboxKind { return f.kind }

func (f *fakeConnector) FetchRecent(context.Context, model.Mailbox) ([]connector.RawMessage, error) {
	return f.messages, f.err
}

type fakeFactory struct {
	conn connector.Connector
}

func (f *fakeFactory) ForMailbox(m model.Mailbox) (connector.Connector, error) {
	if m.Kind != model.MailboxKindIMAP && m.Kind != model.MailboxKindGmail {
		return nil, fmt.Errorf("unknown mailbox kind %q", m.Kind)
	}
	return f.conn, nil
}

type fakeMessageStore struct {
	seen       map[string]int64
	nextID     int64
	insertErr  error
	categories map[int64]model.Category
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{seen: map[string]int64{}, categories: map[int64]model.Category{}}
}

func (f *fakeMessageStore) InsertIfAbsent(_ context.Context, e *model.EmailMessage) (int64, bool, error) {
	if f.insertErr != nil {
		return 0, false, f.insertErr
	}
	if _, ok := f.seen[e.ProviderMessageID]; ok {
		return 0, false, nil
	}
	f.nextID++
	f.seen[e.ProviderMessageID] = f.nextID
	return f.nextID, true, nil
}

func (f *fakeMessageStore) SetCategory(_ context.Context, id int64, category model.Category) error {
	f.categories[id] = category
	return nil
}

type fakeTaskStore struct {
	tasks []*model.DetectedTask
}

func (f *fakeTaskStore) Insert(_ context.Context, t *model.DetectedTask) (int64, error) {
	f.tasks = append(f.tasks, t)
	return int64(len(f.tasks)), nil
}

type fakeMailboxStore struct {
	mailboxes []model.Mailbox
	listErr   error
	activated []int64
}

func (f *fakeMailboxStore) ListActiveByUser(context.Context, int64) ([]model.Mailbox, error) {
	return f.mailboxes, f.listErr
}

func (f *fakeMailboxStore) MarkActive(_ context.Context, id int64) error {
	f.activated = append(f.activated, id)
	return nil
}

type fakeUserStore struct {
	user *model.User
	err  error
}

func (f *fakeUserStore) FindByID(context.Context, int64) (*model.User, error) {
	return f.user, f.err
}

type fakeActivityStore struct {
	records []*model.ActivityLog
}

func (f *fakeActivityStore) Insert(_ context.Context, a *model.ActivityLog) error {
	f.records = append(f.records, a)
	return nil
}

type fakeClassifier struct{}

func (fakeClassifier) Classify(_ context.Context, _ int64, subject, body string) classifier.Result {
	return classifier.HeuristicClassify(subject, body)
}

type fakeDraftPolicy struct {
	calls []int64
}

func (f *fakeDraftPolicy) MaybeGenerateDraft(_ context.Context, msg *model.EmailMessage, _ model.Category, _ model.User) *model.EmailDraft {
	f.calls = append(f.calls, msg.ID)
	return nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, _ any) error {
	f.published = append(f.published, routingKey)
	return nil
}

type fakeLocker struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLocker) Acquire(context.Context, int64) bool {
	f.acquires++
	return !f.held
}

func (f *fakeLocker) Release(context.Context, int64) {
	f.releases++
}

type fakePrecheck struct {
	acquired map[string]bool
	released []string
}

func (f *fakePrecheck) AcquireOnce(_ context.Context, id string) bool {
	if f.acquired == nil {
		f.acquired = map[string]bool{}
	}
	if f.acquired[id] {
		return false
	}
	f.acquired[id] = true
	return true
}

func (f *fakePrecheck) Release(_ context.Context, id string) {
	delete(f.acquired, id)
	f.released = append(f.released, id)
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	messages     *fakeMessageStore
	tasks        *fakeTaskStore
	mailboxes    *fakeMailboxStore
	activity     *fakeActivityStore
	drafts       *fakeDraftPolicy
	publisher    *fakePublisher
	locker       *fakeLocker
	precheck     *fakePrecheck
}

func newFixture(conn connector.Connector) *orchestratorFixture {
	f := &orchestratorFixture{
		messages:  newFakeMessageStore(),
		tasks:     &fakeTaskStore{},
		mailboxes: &fakeMailboxStore{},
		activity:  &fakeActivityStore{},
		drafts:    &fakeDraftPolicy{},
		publisher: &fakePublisher{},
		locker:    &fakeLocker{},
		precheck:  &fakePrecheck{},
	}
	f.orchestrator = NewOrchestrator(
		&fakeFactory{conn: conn},
		f.messages,
		f.tasks,
		f.mailboxes,
		&fakeUserStore{user: &model.User{ID: 5, OrgID: 1, Email: "me@example.com"}},
		f.activity,
		fakeClassifier{},
		f.drafts,
		f.publisher,
		f.locker,
		f.precheck,
		zap.NewNop(),
	)
	return f
}

func testMailbox() model.Mailbox {
	return model.Mailbox{
		ID:      3,
		OrgID:   1,
		UserID:  5,
		Kind:    model.MailboxKindIMAP,
		Address: "me@example.com",
	}
}

func rawMessage(id, subject, body string) connector.RawMessage {
	return connector.RawMessage{
		ProviderMessageID: id,
		From:              "sender@example.com",
		Subject:           subject,
		BodyText:          body,
		ReceivedAt:        time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	}
}

func TestSyncMailboxIngestsAndClassifies(t *testing.T) {
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Action required: review", "Please complete the review by Friday."),
		rawMessage("msg-2", "Newsletter", "This month in engineering."),
	}}
	f := newFixture(conn)

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5, OrgID: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, result.EmailCount)
	require.Len(t, result.Emails, 2)

	require.NotNil(t, result.Emails[0].Category)
	assert.Equal(t, model.CategoryTask, *result.Emails[0].Category)
	assert.Equal(t, model.CategoryFYI, *result.Emails[1].Category)

	// the task-classified message produced at least one detected task
	require.NotEmpty(t, f.tasks.tasks)
	assert.Equal(t, int64(1), f.tasks.tasks[0].MessageID)

	// each ingested message was offered to the draft policy
	assert.Equal(t, []int64{1, 2}, f.drafts.calls)
}

func TestSyncMailboxActionRequestWithoutAI(t *testing.T) {
	// no AI backend: the keyword heuristic must still classify the request as
	// a task and record at least one detected task
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Proposal", "Please action this request and send the proposal by Friday"),
	}}
	f := newFixture(conn)

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5, OrgID: 1})

	require.NoError(t, err)
	require.Equal(t, 1, result.EmailCount)
	require.NotNil(t, result.Emails[0].Category)
	assert.Equal(t, model.CategoryTask, *result.Emails[0].Category)

	require.NotEmpty(t, f.tasks.tasks)
	assert.Equal(t, "Please action this request and send the proposal by Friday", f.tasks.tasks[0].Title)
	assert.Equal(t, int64(5), f.tasks.tasks[0].UserID)
}

func TestSyncMailboxSkipsDuplicates(t *testing.T) {
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Hello", "First time."),
	}}
	f := newFixture(conn)
	mailbox := testMailbox()
	user := model.User{ID: 5, OrgID: 1}

	first, err := f.orchestrator.SyncMailbox(context.Background(), mailbox, user)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EmailCount)

	second, err := f.orchestrator.SyncMailbox(context.Background(), mailbox, user)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EmailCount)

	// downstream ran exactly once
	assert.Len(t, f.drafts.calls, 1)
}

func TestSyncMailboxDuplicateCaughtByStore(t *testing.T) {
	// precheck disabled: the insert-if-absent store is the final guarantee
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Hello", "First time."),
		rawMessage("msg-1", "Hello", "First time."),
	}}
	f := newFixture(conn)
	f.orchestrator.precheck = nil

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5, OrgID: 1})

	require.NoError(t, err)
	assert.Equal(t, 1, result.EmailCount)
}

func TestSyncMailboxReleasesPrecheckOnStoreError(t *testing.T) {
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Hello", "First time."),
	}}
	f := newFixture(conn)
	f.messages.insertErr = errors.New("db down")

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5, OrgID: 1})

	require.NoError(t, err)
	assert.Equal(t, 0, result.EmailCount)
	// fast-path key released so a later pass can retry the message
	assert.Equal(t, []string{"msg-1"}, f.precheck.released)
}

func TestSyncMailboxFinalizes(t *testing.T) {
	conn := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Hello", "First time."),
	}}
	f := newFixture(conn)

	_, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5, OrgID: 1})
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, f.mailboxes.activated)

	require.Len(t, f.activity.records, 1)
	record := f.activity.records[0]
	assert.Equal(t, "email_sync", record.Type)
	assert.Equal(t, "Synced 1 new message(s) for me@example.com", record.Description)

	assert.Equal(t, []string{events.EmailIngested, events.SyncCompleted}, f.publisher.published)
}

func TestSyncMailboxLockedReturnsErrPassInProgress(t *testing.T) {
	f := newFixture(&fakeConnector{kind: model.MailboxKindIMAP})
	f.locker.held = true

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrPassInProgress)
	assert.Zero(t, f.locker.releases)
}

func TestSyncMailboxFetchErrorAbortsPass(t *testing.T) {
	conn := &fakeConnector{kind: model.MailboxKindIMAP, err: errors.New("connection refused")}
	f := newFixture(conn)

	result, err := f.orchestrator.SyncMailbox(context.Background(), testMailbox(), model.User{ID: 5})

	assert.Nil(t, result)
	assert.Error(t, err)
	assert.Empty(t, f.activity.records)
	// lock released even on the failure path
	assert.Equal(t, 1, f.locker.releases)
}

func TestSyncMailboxesForUserContainsFailures(t *testing.T) {
	good := &fakeConnector{kind: model.MailboxKindIMAP, messages: []connector.RawMessage{
		rawMessage("msg-1", "Hello", "First time."),
	}}
	f := newFixture(good)
	f.mailboxes.mailboxes = []model.Mailbox{
		testMailbox(),
		{ID: 4, OrgID: 1, UserID: 5, Kind: "unknown", Address: "other@example.com"},
	}

	outcomes, err := f.orchestrator.SyncMailboxesForUser(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, 1, outcomes[0].Result.EmailCount)

	assert.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Result)
}

func TestSyncMailboxesForUserUserResolveError(t *testing.T) {
	f := newFixture(&fakeConnector{kind: model.MailboxKindIMAP})
	f.orchestrator.users = &fakeUserStore{err: fmt.Errorf("no such user")}

	outcomes, err := f.orchestrator.SyncMailboxesForUser(context.Background(), 9)

	assert.Nil(t, outcomes)
	assert.Error(t, err)
}
