package model

// VoiceProfile describes a user's trained writing style. The sync core only
// reads profiles whose Trained flag is set; anything else disables
// auto-drafting for that user.
type VoiceProfile struct {
	ID             int64
	UserID         int64
	Trained        bool
	Tone           string
	Formality      string
	Greeting       string
	Closing        string
	SentenceLength string
	UsesEmoji      bool
	UsesExclamation bool
	CommonPhrases  []string
	SampleTexts    []string
}
