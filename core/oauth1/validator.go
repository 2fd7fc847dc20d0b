package oauth1

import (
	"context"
	"crypto/hmac"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/darasahq/darasa/core"
)

const (
	maxClientKeyLength = 32
	maxNonceLength     = 64

	// timestampWindow bounds clock skew between us and the Tool Consumer.
	timestampWindow = 10 * time.Minute
)

var clientKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SecretStore resolves a client key to its shared secret.
type SecretStore interface {
	LookupSecret(ctx context.Context, clientKey string) (string, bool)
}

// Validator authenticates inbound OAuth 1.0a HMAC-SHA1 signed requests.
// It is stateless; all state comes from the SecretStore.
type Validator struct {
	secrets SecretStore
	clock   core.Clock
}

func NewValidator(secrets SecretStore, clock core.Clock) *Validator {
	return &Validator{secrets: secrets, clock: clock}
}

// CheckClientKey reports whether key is non-empty, within length bounds and of
// the allowed charset.
func (v *Validator) CheckClientKey(key string) bool {
	return key != "" && len(key) <= maxClientKeyLength && clientKeyRegex.MatchString(key)
}

// CheckNonce reports whether nonce is non-empty and within length bounds.
func (v *Validator) CheckNonce(nonce string) bool {
	return nonce != "" && len(nonce) <= maxNonceLength
}

// Verify authenticates the request and returns the client key that signed it.
// Any failure — unknown key, bad nonce, stale timestamp, wrong signature —
// yields ok=false with no further distinction.
func (v *Validator) Verify(ctx context.Context, r *http.Request, body []byte) (clientKey string, ok bool) {
	params := collectRequestParams(r, body)

	oauth := make(map[string]string, 8)
	for _, p := range params {
		oauth[p.key] = p.value
	}

	clientKey = oauth["oauth_consumer_key"]
	signature := oauth["oauth_signature"]
	nonce := oauth["oauth_nonce"]
	if signature == "" || !v.CheckClientKey(clientKey) || !v.CheckNonce(nonce) {
		return "", false
	}
	if oauth["oauth_signature_method"] != SignatureMethod {
		return "", false
	}
	if ver, present := oauth["oauth_version"]; present && ver != Version {
		return "", false
	}
	if !v.checkTimestamp(oauth["oauth_timestamp"]) {
		return "", false
	}

	// For non form-encoded bodies the body is covered by oauth_body_hash
	// rather than by base string parameters.
	if mediaType(r.Header.Get("Content-Type")) != ContentTypeForm {
		hash, present := oauth["oauth_body_hash"]
		if !present || hash != BodyHash(body) {
			return "", false
		}
	}

	secret, found := v.secrets.LookupSecret(ctx, clientKey)
	if !found {
		return "", false
	}

	base, err := signatureBase(r.Method, RequestURL(r), params)
	if err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sign(base, secret)), []byte(signature)) {
		return "", false
	}
	return clientKey, true
}

func (v *Validator) checkTimestamp(ts string) bool {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	skew := v.clock.Now().Sub(time.Unix(sec, 0))
	if skew < 0 {
		skew = -skew
	}
	return skew <= timestampWindow
}
