package dialogue

import "testing"

func TestDetectExitIntent(t *testing.T) {
	tests := []struct {
		name          string
		message       string
		wantSentiment string
	}{
		{"neutral-counter", "9000 final price bhaiya", "neutral"},
		{"empty", "", "neutral"},
		{"english-exit", "forget it, this is too expensive", "exit"},
		{"hinglish-exit", "bohot mehenga hai, rehne do", "exit"},
		{"another-shop", "I'll just go to another shop", "exit"},
		{"angry", "yeh toh loot rahe ho aap", "angry"},
		{"scam", "this is a scam", "angry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectExitIntent(tt.message)
			if got.Sentiment() != tt.wantSentiment {
				t.Errorf("Sentiment() = %q, want %q (intent %+v)", got.Sentiment(), tt.wantSentiment, got)
			}
		})
	}
}

func TestExitConfidenceGrowsWithMatches(t *testing.T) {
	one := DetectExitIntent("too expensive")
	two := DetectExitIntent("too expensive, forget it")

	if one.Confidence >= two.Confidence {
		t.Errorf("confidence %v with one match, %v with two; want growth", one.Confidence, two.Confidence)
	}

	if one.Confidence < 0.5 {
		t.Errorf("single match confidence = %v, want >= 0.5", one.Confidence)
	}
}

func TestAngryBeatsExit(t *testing.T) {
	got := DetectExitIntent("too expensive, loot rahe ho")
	if !got.Angry || got.Confidence != 0.9 {
		t.Errorf("DetectExitIntent() = %+v, want angry at 0.9", got)
	}
}
