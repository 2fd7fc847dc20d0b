package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/grades"
	"github.com/darasahq/darasa/core/lti"
	"github.com/darasahq/darasa/core/oauth1"
	"github.com/darasahq/darasa/core/outcomes"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
	testutil "github.com/darasahq/darasa/tests"
)

var testClock core.Clock = func() time.Time { return time.Unix(1600000000, 0) }

type nopQueue struct{}

func (nopQueue) Submit(outcomes.Task) {}

type testApp struct {
	server  Server
	ltiRepo lti.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	tree := dummydb.NewCourseTree(db)
	tree.AddBlock("c1", "u1", "", true)
	tree.AddBlock("c1", "u2", "", false)

	conf := core.NewTestConfig()
	logger := core.NopLogger{}
	ltiRepo := dummydb.NewLTIRepository(db)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:   conf,
		Logger: logger,
		LTISvc: lti.NewService(ltiRepo, conf, logger, testClock),
		GradesSvc: grades.NewService(
			dummydb.NewGradesRepository(db), tree, ltiRepo, nopQueue{}, testClock, logger,
		),
		Validate:   validate,
		Translator: translator,
	})
	return &testApp{server: server, ltiRepo: ltiRepo}
}

func signedLaunch(t *testing.T, path, key, secret string, form url.Values) *http.Request {
	t.Helper()

	rawurl := "http://example.com" + path
	signed, err := oauth1.NewSigner(testClock).SignForm(http.MethodPost, rawurl, form, key, secret)
	if err != nil {
		t.Fatalf("signedLaunch() failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, rawurl, strings.NewReader(signed.Encode()))
	req.Header.Set("Content-Type", oauth1.ContentTypeForm)
	return req
}

func TestHome(t *testing.T) {
	app := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET / code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLaunch(t *testing.T) {
	app := setup(t)
	consumer := testutil.CreateConsumer(t, app.ltiRepo, "edX", "edx_key", "edx_secret")

	launchForm := func() url.Values {
		return url.Values{
			"lti_message_type":            {"basic-lti-launch-request"},
			"lti_version":                 {"LTI-1p0"},
			"user_id":                     {"student-1"},
			"resource_link_id":            {"rl-1"},
			"lis_result_sourcedid":        {"sid-1"},
			"lis_outcome_service_url":     {"http://edx.test/outcomes"},
			"tool_consumer_instance_guid": {"edx.test"},
		}
	}

	t.Run("gradable launch provisions everything", func(t *testing.T) {
		req := signedLaunch(t, "/lti/launch/c1/u1", consumer.Key, consumer.Secret, launchForm())
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("launch code = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body)
		}
		var resp launchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response failed: %v", err)
		}
		if !strings.HasPrefix(resp.Username, "student1_") {
			t.Errorf("launch username = %q, want student1_ prefix", resp.Username)
		}
		assert.True(t, resp.Graded, "launch graded")

		usr, err := app.ltiRepo.GetUserByExternalID(context.Background(), consumer.ID, "student-1")
		if err != nil {
			t.Fatalf("GetUserByExternalID() failed: %v", err)
		}
		assignments, err := app.ltiRepo.AssignmentsForUsages(context.Background(), usr.ID, "c1", []string{"u1"})
		if err != nil {
			t.Fatalf("AssignmentsForUsages() failed: %v", err)
		}
		if len(assignments) != 1 || assignments[0].Version != 0 {
			t.Errorf("assignments = %+v, want one with version 0", assignments)
		}
	})

	t.Run("non-gradable usage", func(t *testing.T) {
		req := signedLaunch(t, "/lti/launch/c1/u2", consumer.Key, consumer.Secret, launchForm())
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("launch code = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body)
		}
		var resp launchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response failed: %v", err)
		}
		assert.False(t, resp.Graded, "launch graded")
	})

	t.Run("tampered launch writes nothing", func(t *testing.T) {
		req := signedLaunch(t, "/lti/launch/c1/u1", consumer.Key, "wrong_secret", url.Values{
			"user_id":          {"student-9"},
			"resource_link_id": {"rl-1"},
		})
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("launch code = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if _, err := app.ltiRepo.GetUserByExternalID(context.Background(), consumer.ID, "student-9"); err != lti.ErrNotFound {
			t.Errorf("GetUserByExternalID() error = %v, want %v (no provisioning)", err, lti.ErrNotFound)
		}
	})

	t.Run("missing user_id fails validation", func(t *testing.T) {
		form := launchForm()
		form.Del("user_id")
		req := signedLaunch(t, "/lti/launch/c1/u1", consumer.Key, consumer.Secret, form)
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("launch code = %d, want %d; body: %s", rec.Code, http.StatusBadRequest, rec.Body)
		}
		assert.Contains(t, rec.Body.String(), "user_id")
	})

	t.Run("unsigned launch", func(t *testing.T) {
		body := launchForm().Encode()
		req := httptest.NewRequest(http.MethodPost, "http://example.com/lti/launch/c1/u1", strings.NewReader(body))
		req.Header.Set("Content-Type", oauth1.ContentTypeForm)
		rec := httptest.NewRecorder()
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("launch code = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}
