package diagnostic

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// karma's log4js layout: "18 10 2026 12:34:56.789:ERROR [karma-server]: "
	timestampPrefixRe = regexp.MustCompile(`^\s*\d{2} \d{2} \d{4} \d{2}:\d{2}:\d{2}\.\d{3}:[A-Z]+ \[[^\]]*\]:\s*`)
	// captured console output: "LOG: ", "LOG ERROR: ", "WARN LOG: "
	logPrefixRe = regexp.MustCompile(`^\s*(?:[A-Z]+ )?LOG(?: [A-Z]+)?: `)
)

// UnwrapMessage returns the "message" field when raw is a JSON encoded error
// record, and raw otherwise.
func UnwrapMessage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var record struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil || record.Message == nil {
		return raw
	}
	return *record.Message
}

// StripTransportPrefixes removes the log and console prefixes the runner adds
// in front of a forwarded failure.
func StripTransportPrefixes(msg string) string {
	for {
		next := timestampPrefixRe.ReplaceAllString(msg, "")
		next = logPrefixRe.ReplaceAllString(next, "")
		if next == msg {
			return msg
		}
		msg = next
	}
}
