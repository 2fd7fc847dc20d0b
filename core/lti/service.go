package lti

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/oauth1"
)

// ErrUnauthenticated is returned for any launch whose signature cannot be
// verified. The cause — unknown key, bad nonce, wrong signature — is
// deliberately not disclosed.
var ErrUnauthenticated = errors.New("launch not authenticated")

const maxUsernameAttempts = 10

type (
	// ServiceInterface lets callers substitute the launch service in tests.
	ServiceInterface interface {
		Authenticate(ctx context.Context, r *http.Request, body []byte) (Consumer, error)
		Provision(ctx context.Context, consumer Consumer, launch Launch, courseID, usageID string, gradable bool) (User, *Assignment, error)
		CreateConsumer(ctx context.Context, name, key, secret string) (Consumer, error)
	}

	Service struct {
		repo      Repository
		validator *oauth1.Validator
		conf      *core.Config
		logger    core.Logger
		clock     core.Clock
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, conf *core.Config, logger core.Logger, clock core.Clock) *Service {
	return &Service{
		repo:      repo,
		validator: oauth1.NewValidator(secretStore{repo: repo}, clock),
		conf:      conf,
		logger:    logger,
		clock:     clock,
	}
}

// Authenticate verifies the launch signature and resolves the signing
// Consumer.
func (svc *Service) Authenticate(ctx context.Context, r *http.Request, body []byte) (Consumer, error) {
	key, ok := svc.validator.Verify(ctx, r, body)
	if !ok {
		return Consumer{}, ErrUnauthenticated
	}
	consumer, err := svc.repo.GetConsumerByKey(ctx, key)
	if err != nil {
		// the validator just resolved this key; treat any failure here the
		// same as a bad signature
		return Consumer{}, ErrUnauthenticated
	}
	return consumer, nil
}

// Provision resolves the launching learner to an internal identity and, when
// the usage is gradable and the launch armed the outcome pathway, registers
// the outcome service and graded assignment.
//
// A launch missing either lis_result_sourcedid or lis_outcome_service_url
// creates no assignment; the launch itself still succeeds.
func (svc *Service) Provision(
	ctx context.Context,
	consumer Consumer,
	launch Launch,
	courseID, usageID string,
	gradable bool,
) (User, *Assignment, error) {
	if consumer.InstanceGUID == "" && launch.InstanceGUID != "" {
		if err := svc.repo.SetConsumerInstanceGUID(ctx, consumer.ID, launch.InstanceGUID); err != nil {
			return User{}, nil, errors.Wrap(err, "storing instance guid")
		}
	}

	usr, _, err := svc.getOrCreateUser(ctx, consumer, launch.UserID)
	if err != nil {
		return User{}, nil, err
	}

	if !gradable || !launch.Gradable() {
		return usr, nil, nil
	}

	outcomeSvc, _, err := svc.repo.GetOrCreateOutcomeService(ctx, consumer.ID, launch.OutcomeServiceURL)
	if err != nil {
		return User{}, nil, errors.Wrap(err, "registering outcome service")
	}

	now := svc.clock.Now().UTC()
	assignment, err := svc.repo.UpsertAssignment(ctx, Assignment{
		UserID:           usr.ID,
		CourseID:         courseID,
		UsageID:          usageID,
		OutcomeServiceID: outcomeSvc.ID,
		SourcedID:        launch.SourcedID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return User{}, nil, errors.Wrap(err, "upserting graded assignment")
	}
	return usr, &assignment, nil
}

// CreateConsumer registers a new Tool Consumer, generating credentials for
// any left empty.
func (svc *Service) CreateConsumer(ctx context.Context, name, key, secret string) (Consumer, error) {
	name = core.CleanString(name)
	if name == "" {
		return Consumer{}, core.NewValidationError(
			errors.New("invalid consumer"),
			core.FieldError{Field: "name", Error: "this field is required"},
		)
	}
	if key == "" {
		key = GenerateKey()
	}
	if secret == "" {
		secret = GenerateSecret()
	}
	now := svc.clock.Now().UTC()
	return svc.repo.CreateConsumer(ctx, Consumer{
		Name:      name,
		Key:       key,
		Secret:    secret,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// getOrCreateUser returns the identity mapped to (consumer, externalID),
// provisioning one on first launch. Username collisions are resolved by
// re-deriving with a fresh random suffix.
func (svc *Service) getOrCreateUser(ctx context.Context, consumer Consumer, externalID string) (User, bool, error) {
	usr, err := svc.repo.GetUserByExternalID(ctx, consumer.ID, externalID)
	if err == nil {
		return usr, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, false, errors.Wrap(err, "looking up lti user")
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		created, err := svc.repo.CreateUser(ctx, User{
			ConsumerID: consumer.ID,
			ExternalID: externalID,
			Username:   deriveUsername(externalID, svc.conf.LTI.UsernameSuffixLength),
			CreatedAt:  svc.clock.Now().UTC(),
		})
		switch errors.Cause(err) {
		case nil:
			return created, true, nil
		case ErrUsernameTaken:
			continue
		case ErrUserExists:
			// concurrent launch won the race for this (consumer, externalID)
			usr, err = svc.repo.GetUserByExternalID(ctx, consumer.ID, externalID)
			return usr, false, err
		default:
			return User{}, false, errors.Wrap(err, "creating lti user")
		}
	}
	return User{}, false, ErrUsernameExhausted
}

// secretStore adapts Repository to the signature validator's lookup port.
type secretStore struct {
	repo Repository
}

var _ oauth1.SecretStore = secretStore{}

func (s secretStore) LookupSecret(ctx context.Context, clientKey string) (string, bool) {
	consumer, err := s.repo.GetConsumerByKey(ctx, clientKey)
	if err != nil {
		return "", false
	}
	return consumer.Secret, true
}
