// Package oauth1 implements the subset of OAuth 1.0a (RFC 5849) used by LTI 1.1:
// HMAC-SHA1 signatures over the canonical signature base string, with the
// oauth_body_hash extension for non form-encoded bodies.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"

	// ContentTypeForm is the only content type whose body parameters take part
	// in the signature base string.
	ContentTypeForm = "application/x-www-form-urlencoded"
)

type param struct {
	key, value string
}

// encode percent-encodes per RFC 5849 §3.6 (strict RFC 3986: only unreserved
// characters are left bare).
func encode(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	return ('A' <= c && c <= 'Z') ||
		('a' <= c && c <= 'z') ||
		('0' <= c && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// baseURL normalizes a request URL for signing: lowercased scheme and host,
// default ports elided, query and fragment dropped.
func baseURL(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", errors.Wrap(err, "parsing base URL")
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// normalizeParams percent-encodes, sorts and concatenates parameter pairs per
// RFC 5849 §3.4.1.3.2. oauth_signature and realm never participate.
func normalizeParams(params []param) string {
	pairs := make([]param, 0, len(params))
	for _, p := range params {
		if p.key == "oauth_signature" || p.key == "realm" {
			continue
		}
		pairs = append(pairs, param{encode(p.key), encode(p.value)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+p.value)
	}
	return strings.Join(parts, "&")
}

// signatureBase builds the canonical signature base string.
func signatureBase(method, rawurl string, params []param) (string, error) {
	base, err := baseURL(rawurl)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(method) + "&" + encode(base) + "&" + encode(normalizeParams(params)), nil
}

// sign computes base64(HMAC-SHA1(base)) keyed with the consumer secret. LTI
// never uses a token secret, so the key always ends with a lone '&'.
func sign(base, consumerSecret string) string {
	mac := hmac.New(sha1.New, []byte(encode(consumerSecret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BodyHash computes the oauth_body_hash value for a raw request body:
// base64(SHA1(body)).
func BodyHash(body []byte) string {
	sum := sha1.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// parseAuthorizationHeader extracts OAuth protocol parameters from an
// `Authorization: OAuth ...` header. The realm parameter is dropped.
func parseAuthorizationHeader(header string) []param {
	const scheme = "oauth "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return nil
	}
	var params []param
	for _, part := range strings.Split(header[len(scheme):], ",") {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if strings.EqualFold(key, "realm") {
			continue
		}
		value := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		if unesc, err := url.QueryUnescape(value); err == nil {
			value = unesc
		}
		params = append(params, param{key, value})
	}
	return params
}

// collectRequestParams gathers every parameter that participates in the
// signature base string: Authorization header, query string, and — for
// form-encoded bodies only — the form body.
func collectRequestParams(r *http.Request, body []byte) []param {
	var params []param
	params = append(params, parseAuthorizationHeader(r.Header.Get("Authorization"))...)

	for key, values := range r.URL.Query() {
		for _, v := range values {
			params = append(params, param{key, v})
		}
	}

	ct := r.Header.Get("Content-Type")
	if mediaType(ct) == ContentTypeForm {
		if form, err := url.ParseQuery(string(body)); err == nil {
			for key, values := range form {
				for _, v := range values {
					params = append(params, param{key, v})
				}
			}
		}
	}
	return params
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// RequestURL reconstructs the absolute URL a client signed against, honoring
// reverse-proxy forwarding headers.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + r.URL.EscapedPath()
}
