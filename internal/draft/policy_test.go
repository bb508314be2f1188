package draft

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inboxpilot/internal/model"
)

type fakeSettingStore struct {
	setting *model.UserAutoDraftSetting
	err     error
}

func (f *fakeSettingStore) FindByUser(context.Context, int64) (*model.UserAutoDraftSetting, error) {
	return f.setting, f.err
}

type fakeDraftStore struct {
	exists    bool
	existsErr error
	inserted  []*model.EmailDraft
	insertErr error
}

func (f *fakeDraftStore) ExistsFor(context.Context, int64, int64) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeDraftStore) Insert(_ context.Context, d *model.EmailDraft) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, d)
	return int64(len(f.inserted)), nil
}

type fakeVoiceStore struct {
	profile *model.VoiceProfile
	err     error
}

func (f *fakeVoiceStore) FindTrainedByUser(context.Context, int64) (*model.VoiceProfile, error) {
	return f.profile, f.err
}

type fakeAI struct {
	response string
	err      error
	calls    int
}

func (f *fakeAI) Complete(context.Context, int64, string, string, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func testMessage() *model.EmailMessage {
	return &model.EmailMessage{ID: 11, OrgID: 1, Subject: "Budget approval", From: "cfo@example.com"}
}

func testUser() model.User {
	return model.User{ID: 5, OrgID: 1, Email: "me@example.com", Name: "Me"}
}

func enabledSetting(categories ...model.Category) *model.UserAutoDraftSetting {
	return &model.UserAutoDraftSetting{UserID: 5, OrgID: 1, Enabled: true, Categories: categories}
}

func trainedProfile() *model.VoiceProfile {
	return &model.VoiceProfile{UserID: 5, Trained: true, Tone: "warm", Formality: "casual"}
}

func TestMaybeGenerateDraftHappyPath(t *testing.T) {
	drafts := &fakeDraftStore{}
	ai := &fakeAI{response: `{"subject":"Re: Budget approval","body":"Approved, go ahead."}`}
	policy := NewPolicy(
		&fakeSettingStore{setting: enabledSetting(model.CategoryApproval)},
		drafts,
		&fakeVoiceStore{profile: trainedProfile()},
		ai,
		zap.NewNop(),
	)

	d := policy.MaybeGenerateDraft(context.Background(), testMessage(), model.CategoryApproval, testUser())

	require.NotNil(t, d)
	assert.Equal(t, "Re: Budget approval", d.Subject)
	assert.Equal(t, "Approved, go ahead.", d.Body)
	assert.Equal(t, int64(11), d.MessageID)
	assert.Equal(t, int64(5), d.UserID)
	require.Len(t, drafts.inserted, 1)
}

func TestMaybeGenerateDraftGates(t *testing.T) {
	tests := []struct {
		name     string
		settings *fakeSettingStore
		drafts   *fakeDraftStore
		voices   *fakeVoiceStore
	}{
		{
			name:     "no setting row",
			settings: &fakeSettingStore{setting: nil},
			drafts:   &fakeDraftStore{},
			voices:   &fakeVoiceStore{profile: trainedProfile()},
		},
		{
			name:     "setting disabled",
			settings: &fakeSettingStore{setting: &model.UserAutoDraftSetting{Enabled: false, Categories: []model.Category{model.CategoryApproval}}},
			drafts:   &fakeDraftStore{},
			voices:   &fakeVoiceStore{profile: trainedProfile()},
		},
		{
			name:     "category not opted in",
			settings: &fakeSettingStore{setting: enabledSetting(model.CategoryQuestion)},
			drafts:   &fakeDraftStore{},
			voices:   &fakeVoiceStore{profile: trainedProfile()},
		},
		{
			name:     "draft already exists",
			settings: &fakeSettingStore{setting: enabledSetting(model.CategoryApproval)},
			drafts:   &fakeDraftStore{exists: true},
			voices:   &fakeVoiceStore{profile: trainedProfile()},
		},
		{
			name:     "no trained voice profile",
			settings: &fakeSettingStore{setting: enabledSetting(model.CategoryApproval)},
			drafts:   &fakeDraftStore{},
			voices:   &fakeVoiceStore{profile: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeAI{response: `{"subject":"x","body":"y"}`}
			policy := NewPolicy(tt.settings, tt.drafts, tt.voices, ai, zap.NewNop())

			d := policy.MaybeGenerateDraft(context.Background(), testMessage(), model.CategoryApproval, testUser())

			assert.Nil(t, d)
			assert.Zero(t, ai.calls, "gated paths must not call the AI backend")
			assert.Empty(t, tt.drafts.inserted)
		})
	}
}

func TestMaybeGenerateDraftSwallowsGenerationFailure(t *testing.T) {
	tests := []struct {
		name string
		ai   *fakeAI
	}{
		{name: "backend error", ai: &fakeAI{err: errors.New("no key")}},
		{name: "malformed response", ai: &fakeAI{response: "not json"}},
		{name: "empty body", ai: &fakeAI{response: `{"subject":"Re: x","body":""}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := &fakeDraftStore{}
			policy := NewPolicy(
				&fakeSettingStore{setting: enabledSetting(model.CategoryApproval)},
				drafts,
				&fakeVoiceStore{profile: trainedProfile()},
				tt.ai,
				zap.NewNop(),
			)

			d := policy.MaybeGenerateDraft(context.Background(), testMessage(), model.CategoryApproval, testUser())

			assert.Nil(t, d)
			assert.Empty(t, drafts.inserted)
		})
	}
}

func TestMaybeGenerateDraftDefaultsSubject(t *testing.T) {
	drafts := &fakeDraftStore{}
	policy := NewPolicy(
		&fakeSettingStore{setting: enabledSetting(model.CategoryApproval)},
		drafts,
		&fakeVoiceStore{profile: trainedProfile()},
		&fakeAI{response: `{"body":"On it."}`},
		zap.NewNop(),
	)

	d := policy.MaybeGenerateDraft(context.Background(), testMessage(), model.CategoryApproval, testUser())

	require.NotNil(t, d)
	assert.Equal(t, "Re: Budget approval", d.Subject)
}

func TestMaybeGenerateDraftStoreErrorsReturnNil(t *testing.T) {
	policy := NewPolicy(
		&fakeSettingStore{err: errors.New("db down")},
		&fakeDraftStore{},
		&fakeVoiceStore{profile: trainedProfile()},
		&fakeAI{response: `{"subject":"x","body":"y"}`},
		zap.NewNop(),
	)

	d := policy.MaybeGenerateDraft(context.Background(), testMessage(), model.CategoryApproval, testUser())
	assert.Nil(t, d)
}
