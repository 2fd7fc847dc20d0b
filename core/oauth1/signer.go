package oauth1

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
)

// Signer produces OAuth 1.0a Authorization headers for outbound requests
// carrying non form-encoded bodies (so oauth_body_hash is always included).
type Signer struct {
	clock core.Clock
	nonce func() string
}

func NewSigner(clock core.Clock) *Signer {
	return &Signer{
		clock: clock,
		nonce: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Authorization signs an outbound request and returns the value for its
// Authorization header.
func (s *Signer) Authorization(method, rawurl string, body []byte, consumerKey, consumerSecret string) (string, error) {
	params := []param{
		{"oauth_consumer_key", consumerKey},
		{"oauth_nonce", s.nonce()},
		{"oauth_signature_method", SignatureMethod},
		{"oauth_timestamp", strconv.FormatInt(s.clock.Now().Unix(), 10)},
		{"oauth_version", Version},
		{"oauth_body_hash", BodyHash(body)},
	}

	base, err := signatureBase(method, rawurl, params)
	if err != nil {
		return "", err
	}
	params = append(params, param{"oauth_signature", sign(base, consumerSecret)})

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+`="`+encode(p.value)+`"`)
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

// SignForm signs a form-encoded request the way a Tool Consumer signs a
// launch: the oauth parameters join the form and the signature covers every
// field. The returned values encode to the request body.
func (s *Signer) SignForm(method, rawurl string, form url.Values, consumerKey, consumerSecret string) (url.Values, error) {
	signed := url.Values{}
	for k, vs := range form {
		for _, v := range vs {
			signed.Add(k, v)
		}
	}
	signed.Set("oauth_consumer_key", consumerKey)
	signed.Set("oauth_nonce", s.nonce())
	signed.Set("oauth_signature_method", SignatureMethod)
	signed.Set("oauth_timestamp", strconv.FormatInt(s.clock.Now().Unix(), 10))
	signed.Set("oauth_version", Version)

	params := make([]param, 0, len(signed))
	for k, vs := range signed {
		for _, v := range vs {
			params = append(params, param{k, v})
		}
	}
	base, err := signatureBase(method, rawurl, params)
	if err != nil {
		return nil, err
	}
	signed.Set("oauth_signature", sign(base, consumerSecret))
	return signed, nil
}
