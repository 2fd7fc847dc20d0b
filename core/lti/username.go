package lti

import (
	"crypto/rand"
	"log"
	"strings"
)

const (
	usernamePrefixMaxLength = 24
	usernameSuffixCharset   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// deriveUsername builds an internal username from an external LTI user id:
// a sanitized, truncated prefix plus a random suffix of the given length.
// The suffix resolves collisions between distinct external ids that sanitize
// to the same prefix.
func deriveUsername(externalID string, suffixLen int) string {
	prefix := sanitizeUsername(externalID)
	if prefix == "" {
		prefix = "lti"
	}
	if len(prefix) > usernamePrefixMaxLength {
		prefix = prefix[:usernamePrefixMaxLength]
	}
	if suffixLen <= 0 {
		return prefix
	}
	return prefix + "_" + randomSuffix(suffixLen)
}

// sanitizeUsername lowers the id and keeps only alphanumeric characters and
// underscores.
func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		switch {
		case 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '_':
			b.WriteRune(c)
		}
	}
	return b.String()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("lti.randomSuffix: %v", err)
	}
	for i, b := range buf {
		buf[i] = usernameSuffixCharset[int(b)%len(usernameSuffixCharset)]
	}
	return string(buf)
}
