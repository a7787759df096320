// Package redact strips credentials, tokens, personal data and internal
// details from error text before it is logged or returned to a client.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	TokenPlaceholder      = "[REDACTED_TOKEN]"
	JWTPlaceholder        = "[REDACTED_JWT]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
	HostPlaceholder       = "[REDACTED_HOST]"
	PathPlaceholder       = "[REDACTED_PATH]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	StackPlaceholder      = "[REDACTED_STACK]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules are applied in order; earlier rules may shape what later ones see.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		repl: StackPlaceholder,
	},
	// userinfo of postgres, redis and amqp connection URLs
	{
		re:   regexp.MustCompile(`(?i)\b(postgres(?:ql)?|rediss?|amqps?)://[^@\s/]+@`),
		repl: "${1}://" + CredentialPlaceholder + "@",
	},
	{
		re:   regexp.MustCompile(`eyJ[\w-]+\.eyJ[\w-]+\.[\w-]+`),
		repl: JWTPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`),
		repl: "Bearer " + TokenPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)(password|passwd|pwd|secret|api[_-]?key|token)(\s*[=:]\s*)['"]?[^'"&\s,]{3,}['"]?`),
		repl: "${1}${2}" + Placeholder,
	},
	{
		re: regexp.MustCompile(
			`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|GRANT)\b[\s\w,*()]+?\b(?:FROM|INTO|SET|TABLE|DATABASE|SCHEMA|VIEW)\b(?:[\s\w,*()='"$.]+)?`,
		),
		repl: SQLPlaceholder,
	},
	{
		re:   regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		repl: EmailPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(/[\w.-]+){2,}`),
		repl: PathPlaceholder,
	},
	// host:port, either named or dotted IPv4; bare clock times stay readable
	{
		re:   regexp.MustCompile(`\b(?:[a-zA-Z][a-zA-Z0-9-]*(?:\.[a-zA-Z0-9-]+)*|\d{1,3}(?:\.\d{1,3}){3}):\d{2,5}\b`),
		repl: HostPlaceholder,
	},
}

// String returns s with every sensitive fragment replaced by a placeholder.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
