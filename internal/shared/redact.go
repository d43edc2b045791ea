package shared

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// secretPatterns matches secret-bearing patterns in log/event/error strings.
var secretPatterns = []*regexp.Regexp{
	// Telegram bot tokens: numeric bot id, colon, 30+ char secret.
	regexp.MustCompile(`\b\d{6,12}:[A-Za-z0-9_-]{30,}\b`),
	// Generic key/value secrets (api keys, invite secrets, auth tokens).
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|invite[_-]?secret|auth[_-]?token|bot[_-]?token|bearer)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{16,})"?`),
	// Bearer tokens in Authorization headers.
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{16,})`),
	// JWT compact form (three base64url segments). Covers invite tokens.
	regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`),
	// Google service-account private key material after key-like prefixes.
	regexp.MustCompile(`(?i)(private[_-]?key(?:_id)?)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{16,})"?`),
}

// Redact replaces secret-bearing patterns in the input string with [REDACTED].
// Every log record that may carry a bot token or credential passes through here.
func Redact(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			// For patterns with a prefix group, keep the prefix and redact the value.
			submatch := pat.FindStringSubmatch(match)
			if len(submatch) >= 3 {
				return submatch[1] + redactedPlaceholder
			}
			return redactedPlaceholder
		})
	}
	return result
}

// RedactEnvValue checks if a key name looks secret and returns redacted value if so.
func RedactEnvValue(key, value string) string {
	keyLower := strings.ToLower(key)
	sensitiveKeys := []string{"api_key", "apikey", "secret", "token", "password", "credential", "private_key"}
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return redactedPlaceholder
		}
	}
	return value
}

// MaskChatID keeps the last four characters of a chat id for operator output.
func MaskChatID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return "…" + id[len(id)-4:]
}
