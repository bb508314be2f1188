package draft

import (
	"fmt"
	"strings"

	"inboxpilot/internal/model"
)

const (
	maxSampleTexts  = 3
	maxSampleLength = 1200
)

// buildPrompt assembles the reply-generation prompt from the trained voice
// profile. Sample texts are capped in count and length to bound prompt size.
func buildPrompt(profile *model.VoiceProfile, msg *model.EmailMessage) (system, user string) {
	var b strings.Builder

	b.WriteString("You draft email replies in the user's own voice.\n")
	fmt.Fprintf(&b, "Tone: %s. Formality: %s. Sentence length: %s.\n",
		profile.Tone, profile.Formality, profile.SentenceLength)
	if profile.Greeting != "" {
		fmt.Fprintf(&b, "Open replies with: %q.\n", profile.Greeting)
	}
	if profile.Closing != "" {
		fmt.Fprintf(&b, "Close replies with: %q.\n", profile.Closing)
	}
	if !profile.UsesEmoji {
		b.WriteString("Never use emoji.\n")
	}
	if !profile.UsesExclamation {
		b.WriteString("Avoid exclamation marks.\n")
	}
	if len(profile.CommonPhrases) > 0 {
		fmt.Fprintf(&b, "Phrases the user often uses: %s.\n", strings.Join(profile.CommonPhrases, "; "))
	}

	samples := profile.SampleTexts
	if len(samples) > maxSampleTexts {
		samples = samples[:maxSampleTexts]
	}
	for i, sample := range samples {
		if len(sample) > maxSampleLength {
			sample = sample[:maxSampleLength]
		}
		fmt.Fprintf(&b, "\nWriting sample %d:\n%s\n", i+1, sample)
	}

	b.WriteString(`
Respond with a JSON object: {"subject": "...", "body": "..."}`)

	body := msg.BodyText
	if body == "" {
		body = msg.BodyHTML
	}
	user = fmt.Sprintf("Draft a reply to this email.\nFrom: %s\nSubject: %s\n\n%s",
		msg.From, msg.Subject, body)

	return b.String(), user
}
