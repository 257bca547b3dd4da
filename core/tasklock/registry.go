package tasklock

import (
	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
)

// Registry holds one façade instance per task name, built once at process
// start and handed to the job drivers. Lock names are a closed set; asking
// for anything else is a caller bug.
type Registry struct {
	locks map[model.TaskName]*TaskLock
}

func NewRegistry(store Store, mailer Mailer, users UserDirectory, brand string) *Registry {
	locks := make(map[model.TaskName]*TaskLock, len(model.TaskNames))
	for _, task := range model.TaskNames {
		locks[task] = newTaskLock(task, store, mailer, users, brand)
	}

	return &Registry{locks: locks}
}

func (r *Registry) Get(task model.TaskName) (*TaskLock, error) {
	lock, ok := r.locks[task]
	if !ok {
		return nil, errors.New(errors.InvalidTaskName)
	}
	return lock, nil
}

// MustGet is for the fixed task names wired at startup.
func (r *Registry) MustGet(task model.TaskName) *TaskLock {
	lock, err := r.Get(task)
	if err != nil {
		panic(err)
	}
	return lock
}

// All returns the façades in the enum's declaration order.
func (r *Registry) All() []*TaskLock {
	out := make([]*TaskLock, 0, len(r.locks))
	for _, task := range model.TaskNames {
		out = append(out, r.locks[task])
	}
	return out
}
