// Package redact masks credentials that upstream libraries tend to echo back
// in error messages before those messages reach the logs.
package redact

import "regexp"

// Order matters: the more specific patterns run first so that a masked value
// is never matched again by a broader one.
var (
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]+`)
	openaiKeyPattern    = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)
	resendKeyPattern    = regexp.MustCompile(`\bre_[a-zA-Z0-9_]{10,}`)

	slackWebhookPattern   = regexp.MustCompile(`(hooks\.slack\.com/services/)[A-Za-z0-9/_\-]+`)
	discordWebhookPattern = regexp.MustCompile(`(discord(?:app)?\.com/api/webhooks/)[A-Za-z0-9/_\-]+`)

	userinfoPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

// String masks API keys, webhook tokens and URL passwords in s.
func String(s string) string {
	s = anthropicKeyPattern.ReplaceAllString(s, "sk-ant-****")
	s = openaiKeyPattern.ReplaceAllString(s, "sk-****")
	s = resendKeyPattern.ReplaceAllString(s, "re_****")
	s = slackWebhookPattern.ReplaceAllString(s, "${1}****")
	s = discordWebhookPattern.ReplaceAllString(s, "${1}****")
	s = userinfoPattern.ReplaceAllString(s, "://$1:****@")
	return s
}

// Error returns err's message with secrets masked. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
