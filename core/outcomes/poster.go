package outcomes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/oauth1"
)

// Result classifies the outcome of a replaceResult post.
type Result int

const (
	ResultSuccess Result = iota
	// ResultTransient failures may be retried with the same task.
	ResultTransient
	// ResultPermanent failures are final; the version is never rolled back.
	ResultPermanent
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// ClassifyResult maps an HTTP response to a Result. Pure so retry policy can
// be tested without sockets:
//   - 200 with imsx_codeMajor=success -> success
//   - any other 2xx body/status       -> permanent
//   - 401/403                          -> permanent (signature/auth problem)
//   - other 4xx                        -> permanent
//   - 5xx                              -> transient
func ClassifyResult(status int, body []byte) Result {
	switch {
	case status >= 500:
		return ResultTransient
	case status != http.StatusOK:
		return ResultPermanent
	}
	codeMajor, _, err := parseResponse(body)
	if err != nil || codeMajor != codeMajorSuccess {
		return ResultPermanent
	}
	return ResultSuccess
}

// Target names where and on whose behalf a score is delivered.
type Target struct {
	ServiceURL     string
	SourcedID      string
	ConsumerKey    string
	ConsumerSecret string
}

// Poster delivers a normalized score to a Tool Consumer outcome service.
type Poster interface {
	Post(ctx context.Context, tgt Target, score float64) (Result, error)
}

// HTTPPoster signs and submits POX replaceResult requests over HTTP.
type HTTPPoster struct {
	client    *resty.Client
	signer    *oauth1.Signer
	precision int
}

var _ Poster = (*HTTPPoster)(nil)

func NewHTTPPoster(conf *core.Config, clock core.Clock) *HTTPPoster {
	return &HTTPPoster{
		client:    resty.New().SetTimeout(conf.Outcomes.HTTPTimeout),
		signer:    oauth1.NewSigner(clock),
		precision: conf.Outcomes.ScoreDecimalPrecision,
	}
}

func (p *HTTPPoster) Post(ctx context.Context, tgt Target, score float64) (Result, error) {
	body, err := ReplaceResultBody(tgt.SourcedID, FormatScore(score, p.precision))
	if err != nil {
		return ResultPermanent, err
	}

	auth, err := p.signer.Authorization(http.MethodPost, tgt.ServiceURL, body, tgt.ConsumerKey, tgt.ConsumerSecret)
	if err != nil {
		return ResultPermanent, errors.Wrap(err, "signing outcome request")
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/xml").
		SetHeader("Authorization", auth).
		SetBody(body).
		Post(tgt.ServiceURL)
	if err != nil {
		// network error, timeout included
		return ResultTransient, errors.Wrap(err, "posting outcome")
	}

	result := ClassifyResult(resp.StatusCode(), resp.Body())
	if result != ResultSuccess {
		return result, fmt.Errorf("outcome service replied %d: %s", resp.StatusCode(), firstLine(resp.Body()))
	}
	return ResultSuccess, nil
}

func firstLine(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
