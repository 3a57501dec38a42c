// Package redact strips sensitive values from strings before they reach
// logs, audit rows, or chat replies.
//
// The main leak path in Cinematic is error text: the metadata provider
// carries its API key in the request URL, so a transport failure embeds the
// key in the error message. Redaction is best-effort — it works on string
// representations and relies on callers to pass the right set of secrets.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each secret in s with [REDACTED].
// Secrets shorter than 4 characters are skipped to avoid mangling common
// substrings.
func String(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, secret, placeholder)
	}
	return s
}

// Error renders err with the given secrets removed. A nil err yields "".
func Error(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return String(err.Error(), secrets...)
}
