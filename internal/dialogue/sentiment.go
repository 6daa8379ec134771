package dialogue

import "strings"

// ExitIntent is the verdict of the keyword sentiment pass over a buyer
// message. Confidence at or above 0.5 arms the walk-away-save transition.
type ExitIntent struct {
	Leaving    bool
	Angry      bool
	Confidence float64
	Trigger    string
}

// Sentiment maps the intent onto the session's sentiment label.
func (e ExitIntent) Sentiment() string {
	switch {
	case e.Angry:
		return "angry"
	case e.Leaving && e.Confidence >= 0.5:
		return "exit"
	default:
		return "neutral"
	}
}

// exitKeywords holds English plus transliterated Hindi walk-away phrases.
var exitKeywords = []string{
	// English
	"too expensive", "too much", "too costly", "can't afford", "forget it",
	"never mind", "no thanks", "not interested", "i'll pass", "bye",
	"leaving", "somewhere else", "another shop", "no deal",
	// Hinglish
	"bohot mehenga", "bahut mehenga", "bahut zyada", "chhodo", "chodo",
	"jane do", "jaane do", "rehne do", "nahi chahiye", "nahi lena",
	"itna nahi", "afford nahi", "budget nahi",
	"dusri dukaan", "kahi aur", "kahin aur",
}

// angryKeywords mark messages that have gone past haggling.
var angryKeywords = []string{
	"waste of time", "scam", "rip off", "loot", "cheating",
	"loot rahe ho", "pagal bana rahe", "mazaak",
}

// DetectExitIntent scans a buyer message for walk-away signals. Confidence
// grows 0.15 per matched phrase from a 0.5 base; angry phrases score 0.9
// outright.
func DetectExitIntent(message string) ExitIntent {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return ExitIntent{}
	}

	for _, kw := range angryKeywords {
		if strings.Contains(text, kw) {
			return ExitIntent{Leaving: true, Angry: true, Confidence: 0.9, Trigger: kw}
		}
	}

	var (
		matches int
		first   string
	)

	for _, kw := range exitKeywords {
		if strings.Contains(text, kw) {
			matches++
			if first == "" {
				first = kw
			}
		}
	}

	if matches == 0 {
		return ExitIntent{}
	}

	confidence := 0.5 + 0.15*float64(matches)
	if confidence > 1.0 {
		confidence = 1.0
	}

	return ExitIntent{Leaving: true, Confidence: confidence, Trigger: first}
}
