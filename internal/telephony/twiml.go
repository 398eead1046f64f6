package telephony

import (
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

// DefaultGreeting is spoken when a call has no text attached.
const DefaultGreeting = "Hello, you've reached LocalAgent. How can I assist you?"

var pollyVoices = map[string]string{
	"en": "Polly.Joanna",
	"ar": "Polly.Zeina",
}

// PollyVoice returns the Twilio Polly voice for language, falling back
// to English.
func PollyVoice(language string) string {
	if v, ok := pollyVoices[strings.ToLower(language)]; ok {
		return v
	}
	return pollyVoices["en"]
}

// fallbackTwiML is served if rendering fails.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`

// TwiML renders a voice response that speaks text in language. With
// gather set the caller is prompted for a single digit afterwards.
func TwiML(text, language string, gather bool) string {
	verbs := []twiml.Element{
		&twiml.VoiceSay{Message: text, Voice: PollyVoice(language)},
	}
	if gather {
		verbs = append(verbs, &twiml.VoiceGather{
			NumDigits: "1",
			Timeout:   "5",
			InnerElements: []twiml.Element{
				&twiml.VoiceSay{Message: "Press any key to continue"},
			},
		})
	}
	out, err := twiml.Voice(verbs)
	if err != nil {
		return fallbackTwiML
	}
	return out
}
