// Package dialogue renders the seller's voice: buyer-input sanitisation,
// exit-intent sentiment, vernacular templates, and the LLM-backed generator
// with its deterministic price guardrail.
package dialogue

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxBuyerMessageLen caps what reaches the prompt, in characters; stored
// offer messages cap higher (2 KB) at the service layer.
const maxBuyerMessageLen = 512

// redactedPlaceholder replaces buyer text that tried to steer the model.
const redactedPlaceholder = "[redacted]"

// injectionPatterns matches role-reversal and instruction-override attempts.
var injectionPatterns = regexp.MustCompile(
	`(?i)(ignore\s+(all\s+)?previous|system\s*:|assistant\s*:|you\s+are\s+now|` +
		`forget\s+(your|all)|disregard\s+(above|instructions)|` + "```" + `|<\|)`)

// controlChars matches control characters except newline.
var controlChars = regexp.MustCompile(`[\x00-\x09\x0b-\x1f\x7f]`)

// SanitizeBuyerMessage truncates, strips control characters, and redacts
// prompt-injection attempts. The redacted flag surfaces in response metadata
// so the behaviour is observable without leaking what was matched.
func SanitizeBuyerMessage(msg string) (string, bool) {
	if utf8.RuneCountInString(msg) > maxBuyerMessageLen {
		msg = string([]rune(msg)[:maxBuyerMessageLen])
	}

	msg = controlChars.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)

	if injectionPatterns.MatchString(msg) {
		return redactedPlaceholder, true
	}

	return msg, false
}

// maxStoredMessageLen caps what the durable offer log keeps per message.
const maxStoredMessageLen = 2048

// SanitizeStoredMessage prepares a buyer message for the durable offer log:
// wider cap than the prompt path, same control-character and injection rules.
func SanitizeStoredMessage(msg string) string {
	if len(msg) > maxStoredMessageLen {
		// Back the byte cap off to a rune boundary.
		cut := maxStoredMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}

	msg = controlChars.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)

	if injectionPatterns.MatchString(msg) {
		return redactedPlaceholder
	}

	return msg
}

// thinkBlock matches chain-of-thought emitted by reasoning models.
var thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// StripThink removes any <think>...</think> block from a message, returning
// the clean message and the extracted reasoning.
func StripThink(msg string) (string, string) {
	matches := thinkBlock.FindStringSubmatch(msg)
	if matches == nil {
		// An unterminated block still must not reach the buyer.
		if idx := strings.Index(msg, "<think>"); idx >= 0 {
			return strings.TrimSpace(msg[:idx]), strings.TrimSpace(msg[idx+len("<think>"):])
		}

		return msg, ""
	}

	clean := thinkBlock.ReplaceAllString(msg, "")

	return strings.TrimSpace(clean), strings.TrimSpace(matches[1])
}
