package config

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***"

// keywordPassword matches password=value in a keyword/value DSN, where the
// value is either a bare word or a single-quoted string.
var keywordPassword = regexp.MustCompile(`(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// RedactURL masks the password in a PostgreSQL connection string with "***".
// Both URL ("postgres://user:pw@host/db", "?password=pw") and keyword/value
// ("host=h password=pw") forms are handled. The rest of the string is kept
// byte for byte; strings that cannot be parsed are returned unchanged.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		return keywordPassword.ReplaceAllString(raw, "${1}"+redacted)
	}

	if _, err := url.Parse(raw); err != nil {
		return raw
	}

	return redactQuery(redactUserinfo(raw))
}

// redactUserinfo replaces whatever follows "user:" in the authority.
func redactUserinfo(raw string) string {
	afterScheme := strings.Index(raw, "://") + len("://")

	authority := raw[afterScheme:]
	if end := strings.IndexAny(authority, "/?#"); end >= 0 {
		authority = authority[:end]
	}

	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return raw
	}

	userinfo := authority[:at]

	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return raw
	}

	return raw[:afterScheme] + userinfo[:colon+1] + redacted + raw[afterScheme+at:]
}

// redactQuery masks a password query parameter, keeping parameter order.
func redactQuery(raw string) string {
	base, query, ok := strings.Cut(raw, "?")
	if !ok {
		return raw
	}

	params := strings.Split(query, "&")
	for i, p := range params {
		if key, _, found := strings.Cut(p, "="); found && key == "password" {
			params[i] = key + "=" + redacted
		}
	}

	return base + "?" + strings.Join(params, "&")
}
