package lti_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/lti"
	"github.com/darasahq/darasa/core/oauth1"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
	testutil "github.com/darasahq/darasa/tests"
)

var testClock core.Clock = func() time.Time { return time.Unix(1600000000, 0) }

func setup(t *testing.T) (lti.Repository, *lti.Service) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewLTIRepository(db)
	return repo, lti.NewService(repo, core.NewTestConfig(), core.NopLogger{}, testClock)
}

func launchBody(t *testing.T, rawurl, key, secret string, form map[string]string) string {
	t.Helper()

	values := make(map[string][]string, len(form))
	for k, v := range form {
		values[k] = []string{v}
	}
	signed, err := oauth1.NewSigner(testClock).SignForm("POST", rawurl, values, key, secret)
	if err != nil {
		t.Fatalf("launchBody() failed: %v", err)
	}
	return signed.Encode()
}

func TestService_Authenticate(t *testing.T) {
	repo, svc := setup(t)
	consumer := testutil.CreateConsumer(t, repo, "edX", "edx_key", "edx_secret")

	rawurl := "http://tool.test/lti/launch/c1/u1"
	body := launchBody(t, rawurl, consumer.Key, consumer.Secret, map[string]string{
		"user_id": "student-1",
	})

	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "valid launch", body: body},
		{
			name:    "tampered launch",
			body:    strings.Replace(body, "student-1", "student-2", 1),
			wantErr: lti.ErrUnauthenticated,
		},
		{
			name:    "unknown consumer",
			body:    launchBody(t, rawurl, "ghost_key", "ghost_secret", nil),
			wantErr: lti.ErrUnauthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", rawurl, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", oauth1.ContentTypeForm)

			got, err := svc.Authenticate(context.Background(), req, []byte(tt.body))
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.ID != consumer.ID {
				t.Errorf("Authenticate() consumer = %d, want %d", got.ID, consumer.ID)
			}
		})
	}
}

func TestService_Provision(t *testing.T) {
	ctx := context.Background()
	repo, svc := setup(t)
	consumer := testutil.CreateConsumer(t, repo, "edX", "edx_key", "edx_secret")

	gradableLaunch := lti.Launch{
		ConsumerKey:       consumer.Key,
		UserID:            "Student-1",
		ResourceLinkID:    "rl-1",
		SourcedID:         "sourced-1",
		OutcomeServiceURL: "http://edx.test/outcomes",
		InstanceGUID:      "edx.test",
	}

	usr, assignment, err := svc.Provision(ctx, consumer, gradableLaunch, "c1", "u1", true)
	if err != nil {
		t.Fatalf("Provision() failed: %v", err)
	}
	if !strings.HasPrefix(usr.Username, "student1_") {
		t.Errorf("Provision() username = %q, want student1_ prefix", usr.Username)
	}
	if assignment == nil {
		t.Fatal("Provision() assignment = nil, want created")
	}
	if assignment.Version != 0 {
		t.Errorf("Provision() assignment version = %d, want 0", assignment.Version)
	}
	if assignment.SourcedID != "sourced-1" {
		t.Errorf("Provision() sourcedid = %q, want sourced-1", assignment.SourcedID)
	}

	// instance guid recorded on first sight
	consumer, err = repo.GetConsumer(ctx, consumer.ID)
	if err != nil {
		t.Fatalf("GetConsumer() failed: %v", err)
	}
	if consumer.InstanceGUID != "edx.test" {
		t.Errorf("Provision() instance guid = %q, want edx.test", consumer.InstanceGUID)
	}

	t.Run("relaunch is idempotent", func(t *testing.T) {
		usr2, assignment2, err := svc.Provision(ctx, consumer, gradableLaunch, "c1", "u1", true)
		if err != nil {
			t.Fatalf("Provision() failed: %v", err)
		}
		if usr2.ID != usr.ID {
			t.Errorf("Provision() user = %d, want existing %d", usr2.ID, usr.ID)
		}
		if assignment2.ID != assignment.ID {
			t.Errorf("Provision() assignment = %d, want existing %d", assignment2.ID, assignment.ID)
		}
	})

	t.Run("same outcome url shares one service", func(t *testing.T) {
		other := gradableLaunch
		other.UserID = "Student-2"
		other.SourcedID = "sourced-2"

		_, assignment2, err := svc.Provision(ctx, consumer, other, "c1", "u1", true)
		if err != nil {
			t.Fatalf("Provision() failed: %v", err)
		}
		if assignment2.OutcomeServiceID != assignment.OutcomeServiceID {
			t.Errorf("Provision() outcome service = %d, want shared %d",
				assignment2.OutcomeServiceID, assignment.OutcomeServiceID)
		}
	})

	t.Run("not gradable", func(t *testing.T) {
		_, got, err := svc.Provision(ctx, consumer, gradableLaunch, "c1", "u2", false)
		if err != nil {
			t.Fatalf("Provision() failed: %v", err)
		}
		if got != nil {
			t.Errorf("Provision() assignment = %+v, want nil", got)
		}
	})

	t.Run("missing sourcedid", func(t *testing.T) {
		launch := gradableLaunch
		launch.SourcedID = ""

		_, got, err := svc.Provision(ctx, consumer, launch, "c1", "u3", true)
		if err != nil {
			t.Fatalf("Provision() failed: %v", err)
		}
		if got != nil {
			t.Errorf("Provision() assignment = %+v, want nil", got)
		}
	})

	t.Run("missing outcome url", func(t *testing.T) {
		launch := gradableLaunch
		launch.OutcomeServiceURL = ""

		_, got, err := svc.Provision(ctx, consumer, launch, "c1", "u4", true)
		if err != nil {
			t.Fatalf("Provision() failed: %v", err)
		}
		if got != nil {
			t.Errorf("Provision() assignment = %+v, want nil", got)
		}
	})
}

func TestService_CreateConsumer(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)

	consumer, err := svc.CreateConsumer(ctx, "  edX  ", "", "")
	if err != nil {
		t.Fatalf("CreateConsumer() failed: %v", err)
	}
	if consumer.Name != "edX" {
		t.Errorf("CreateConsumer() name = %q, want edX", consumer.Name)
	}
	if len(consumer.Key) != 32 || len(consumer.Secret) != 32 {
		t.Errorf("CreateConsumer() key/secret lengths = %d/%d, want 32/32",
			len(consumer.Key), len(consumer.Secret))
	}

	if _, err = svc.CreateConsumer(ctx, "other", consumer.Key, ""); errors.Cause(err) != lti.ErrConsumerExists {
		t.Errorf("CreateConsumer() duplicate key error = %v, want %v", err, lti.ErrConsumerExists)
	}

	var vErr *core.ValidationError
	if _, err = svc.CreateConsumer(ctx, "   ", "", ""); !errors.As(err, &vErr) {
		t.Errorf("CreateConsumer() blank name error = %v, want validation error", err)
	}
}
