package outcomes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/oauth1"
)

func TestClassifyResult(t *testing.T) {
	successBody := `<imsx_POXEnvelopeResponse><imsx_POXHeader><imsx_POXResponseHeaderInfo><imsx_statusInfo>` +
		`<imsx_codeMajor>success</imsx_codeMajor>` +
		`</imsx_statusInfo></imsx_POXResponseHeaderInfo></imsx_POXHeader></imsx_POXEnvelopeResponse>`
	failureBody := strings.Replace(successBody, "success", "failure", 2)

	tests := []struct {
		name   string
		status int
		body   string
		want   Result
	}{
		{name: "200 success", status: 200, body: successBody, want: ResultSuccess},
		{name: "200 failure codeMajor", status: 200, body: failureBody, want: ResultPermanent},
		{name: "200 unparseable", status: 200, body: "oops", want: ResultPermanent},
		{name: "201 success body", status: 201, body: successBody, want: ResultPermanent},
		{name: "302 redirect", status: 302, body: "", want: ResultPermanent},
		{name: "400", status: 400, body: "", want: ResultPermanent},
		{name: "401", status: 401, body: "", want: ResultPermanent},
		{name: "403", status: 403, body: "", want: ResultPermanent},
		{name: "404", status: 404, body: "", want: ResultPermanent},
		{name: "500", status: 500, body: "", want: ResultTransient},
		{name: "502", status: 502, body: "", want: ResultTransient},
		{name: "503", status: 503, body: "", want: ResultTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyResult(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("ClassifyResult(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

const successResponse = `<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeResponse xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
	<imsx_POXHeader>
		<imsx_POXResponseHeaderInfo>
			<imsx_statusInfo><imsx_codeMajor>success</imsx_codeMajor></imsx_statusInfo>
		</imsx_POXResponseHeaderInfo>
	</imsx_POXHeader>
	<imsx_POXBody><replaceResultResponse/></imsx_POXBody>
</imsx_POXEnvelopeResponse>`

type posterSecrets struct{ key, secret string }

func (s posterSecrets) LookupSecret(_ context.Context, clientKey string) (string, bool) {
	if clientKey == s.key {
		return s.secret, true
	}
	return "", false
}

func TestHTTPPoster_Post(t *testing.T) {
	var clock core.Clock = time.Now
	poster := NewHTTPPoster(core.NewTestConfig(), clock)

	// the consumer side: verify the signature like a real outcome service
	validator := oauth1.NewValidator(posterSecrets{key: "key1", secret: "secret1"}, clock)

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = body
		if _, ok := validator.Verify(r.Context(), r, body); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(successResponse))
	}))
	defer srv.Close()

	tgt := Target{
		ServiceURL:     srv.URL,
		SourcedID:      "sourced-1",
		ConsumerKey:    "key1",
		ConsumerSecret: "secret1",
	}

	result, err := poster.Post(context.Background(), tgt, 0.85)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}
	if result != ResultSuccess {
		t.Fatalf("Post() result = %v, want %v", result, ResultSuccess)
	}
	for _, want := range []string{"<sourcedId>sourced-1</sourcedId>", "<textString>0.8500</textString>"} {
		if !strings.Contains(string(gotBody), want) {
			t.Errorf("Post() body missing %q", want)
		}
	}

	t.Run("wrong secret is rejected", func(t *testing.T) {
		bad := tgt
		bad.ConsumerSecret = "wrong"
		result, err := poster.Post(context.Background(), bad, 0.85)
		if err == nil {
			t.Fatal("Post() expected error")
		}
		if result != ResultPermanent {
			t.Errorf("Post() result = %v, want %v", result, ResultPermanent)
		}
	})
}

func TestHTTPPoster_Post_failures(t *testing.T) {
	var clock core.Clock = time.Now
	poster := NewHTTPPoster(core.NewTestConfig(), clock)
	tgt := Target{SourcedID: "sourced-1", ConsumerKey: "key1", ConsumerSecret: "secret1"}

	t.Run("server error is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		tgt := tgt
		tgt.ServiceURL = srv.URL

		result, err := poster.Post(context.Background(), tgt, 1)
		if err == nil {
			t.Fatal("Post() expected error")
		}
		if result != ResultTransient {
			t.Errorf("Post() result = %v, want %v", result, ResultTransient)
		}
	})

	t.Run("failure codeMajor is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Replace(successResponse, "success", "failure", 1)))
		}))
		defer srv.Close()
		tgt := tgt
		tgt.ServiceURL = srv.URL

		result, err := poster.Post(context.Background(), tgt, 1)
		if err == nil {
			t.Fatal("Post() expected error")
		}
		if result != ResultPermanent {
			t.Errorf("Post() result = %v, want %v", result, ResultPermanent)
		}
	})

	t.Run("unreachable service is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		tgt := tgt
		tgt.ServiceURL = srv.URL
		srv.Close() // refuse connections

		result, err := poster.Post(context.Background(), tgt, 1)
		if err == nil {
			t.Fatal("Post() expected error")
		}
		if result != ResultTransient {
			t.Errorf("Post() result = %v, want %v", result, ResultTransient)
		}
	})
}
