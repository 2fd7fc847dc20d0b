package dummydb

import (
	"sync"

	"github.com/darasahq/darasa/core/grades"
	"github.com/darasahq/darasa/core/lti"
)

type (
	DB struct {
		lti    *ltiTables
		grades *gradesTables
	}

	ltiTables struct {
		sync.RWMutex
		consumers       map[int]*lti.Consumer
		users           map[int]*lti.User
		outcomeServices map[int]*lti.OutcomeService
		assignments     map[int]*lti.Assignment
	}

	gradesTables struct {
		sync.RWMutex
		scores map[int]*grades.Score
		blocks []courseBlock
	}

	courseBlock struct {
		courseID string
		usageID  string
		parentID string
		gradable bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		lti: &ltiTables{
			consumers:       make(map[int]*lti.Consumer),
			users:           make(map[int]*lti.User),
			outcomeServices: make(map[int]*lti.OutcomeService),
			assignments:     make(map[int]*lti.Assignment),
		},
		grades: &gradesTables{
			scores: make(map[int]*grades.Score),
		},
	}
	return db, nil
}
