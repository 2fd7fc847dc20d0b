package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/darasahq/darasa/core/lti"
)

var ltiPKCount int

type ltiRepository struct {
	db *ltiTables
}

var _ lti.Repository = (*ltiRepository)(nil) // interface compliance check

func NewLTIRepository(db *DB) lti.Repository {
	return &ltiRepository{db: db.lti}
}

func nextLTIPK() int {
	ltiPKCount++
	return ltiPKCount
}

func (repo *ltiRepository) CreateConsumer(_ context.Context, c lti.Consumer) (lti.Consumer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.consumers {
		if existing.Key == c.Key {
			return lti.Consumer{}, lti.ErrConsumerExists
		}
	}

	c.ID = nextLTIPK()
	repo.db.consumers[c.ID] = &c
	return c, nil
}

func (repo *ltiRepository) GetConsumer(_ context.Context, id int) (lti.Consumer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.consumers[id]; ok {
		return *c, nil
	}
	return lti.Consumer{}, lti.ErrNotFound
}

func (repo *ltiRepository) GetConsumerByKey(_ context.Context, key string) (lti.Consumer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.consumers {
		if c.Key == key {
			return *c, nil
		}
	}
	return lti.Consumer{}, lti.ErrNotFound
}

func (repo *ltiRepository) SetConsumerInstanceGUID(_ context.Context, id int, guid string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.consumers[id]
	if !ok {
		return lti.ErrNotFound
	}
	c.InstanceGUID = guid
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *ltiRepository) DeleteConsumer(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.consumers[id]; !ok {
		return lti.ErrNotFound
	}
	for _, a := range repo.db.assignments {
		svc, ok := repo.db.outcomeServices[a.OutcomeServiceID]
		if ok && svc.ConsumerID == id {
			return lti.ErrConsumerInUse
		}
	}

	for sid, svc := range repo.db.outcomeServices {
		if svc.ConsumerID == id {
			delete(repo.db.outcomeServices, sid)
		}
	}
	for uid, usr := range repo.db.users {
		if usr.ConsumerID == id {
			delete(repo.db.users, uid)
		}
	}
	delete(repo.db.consumers, id)
	return nil
}

func (repo *ltiRepository) GetUserByExternalID(_ context.Context, consumerID int, externalID string) (lti.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.ConsumerID == consumerID && usr.ExternalID == externalID {
			return *usr, nil
		}
	}
	return lti.User{}, lti.ErrNotFound
}

func (repo *ltiRepository) CreateUser(_ context.Context, usr lti.User) (lti.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.users {
		if existing.ConsumerID == usr.ConsumerID && existing.ExternalID == usr.ExternalID {
			return lti.User{}, lti.ErrUserExists
		}
		if existing.Username == usr.Username {
			return lti.User{}, lti.ErrUsernameTaken
		}
	}

	usr.ID = nextLTIPK()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *ltiRepository) GetOutcomeService(_ context.Context, id int) (lti.OutcomeService, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if svc, ok := repo.db.outcomeServices[id]; ok {
		return *svc, nil
	}
	return lti.OutcomeService{}, lti.ErrNotFound
}

func (repo *ltiRepository) GetOrCreateOutcomeService(_ context.Context, consumerID int, url string) (lti.OutcomeService, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, svc := range repo.db.outcomeServices {
		if svc.URL == url {
			return *svc, false, nil
		}
	}

	svc := lti.OutcomeService{ID: nextLTIPK(), ConsumerID: consumerID, URL: url}
	repo.db.outcomeServices[svc.ID] = &svc
	return svc, true, nil
}

func (repo *ltiRepository) GetAssignment(_ context.Context, id int) (lti.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return lti.Assignment{}, lti.ErrNotFound
}

func (repo *ltiRepository) UpsertAssignment(_ context.Context, a lti.Assignment) (lti.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.assignments {
		if existing.OutcomeServiceID == a.OutcomeServiceID && existing.SourcedID == a.SourcedID {
			existing.UpdatedAt = a.UpdatedAt
			return *existing, nil
		}
	}

	a.ID = nextLTIPK()
	a.Version = 0
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *ltiRepository) BumpAssignmentVersion(_ context.Context, id int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a, ok := repo.db.assignments[id]
	if !ok {
		return 0, lti.ErrNotFound
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return a.Version, nil
}

func (repo *ltiRepository) AssignmentsForUsages(_ context.Context, userID int, courseID string, usageIDs []string) ([]lti.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]struct{}, len(usageIDs))
	for _, uid := range usageIDs {
		wanted[uid] = struct{}{}
	}

	var assignments []lti.Assignment
	for _, a := range repo.db.assignments {
		if a.UserID != userID || a.CourseID != courseID {
			continue
		}
		if _, ok := wanted[a.UsageID]; ok {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}
