package tasklock

import (
	"context"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/model"
)

// Store is the persistence contract behind the task lock façade. The
// database implementation serializes same-task mutations with row-level
// exclusive locks; mutating operations retry once internally on write
// failure.
type Store interface {
	GetOrCreate(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error)
	Get(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error)
	Acquire(ctx context.Context, task model.TaskName, expireTime time.Time) (bool, *model.TimedTaskLock, error)
	MarkStart(ctx context.Context, lock *model.TimedTaskLock, startTime *time.Time) (bool, error)
	Release(ctx context.Context, task model.TaskName, runDesc string) (bool, *model.TimedTaskLock, error)
	UpdateNotifyTime(ctx context.Context, task model.TaskName, notifyTime time.Time) error
}

// Mailer delivers lock notifications.
type Mailer interface {
	SendEmail(ctx context.Context, subject string, receivers []string, message, tag string) error
}

// UserDirectory resolves notification receivers.
type UserDirectory interface {
	ListAdminUsernames(ctx context.Context) ([]string, error)
}

type dbStore struct{}

// NewDBStore returns the MySQL-backed store over the dao layer.
func NewDBStore() Store {
	return dbStore{}
}

func (dbStore) GetOrCreate(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	return dao.GetOrCreateTaskLock(ctx, task)
}

func (dbStore) Get(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	return dao.GetTaskLock(ctx, task)
}

func (dbStore) Acquire(ctx context.Context, task model.TaskName, expireTime time.Time) (bool, *model.TimedTaskLock, error) {
	return dao.AcquireTaskLock(ctx, task, expireTime)
}

func (dbStore) MarkStart(ctx context.Context, lock *model.TimedTaskLock, startTime *time.Time) (bool, error) {
	return dao.MarkTaskLockStart(ctx, lock, startTime)
}

func (dbStore) Release(ctx context.Context, task model.TaskName, runDesc string) (bool, *model.TimedTaskLock, error) {
	return dao.ReleaseTaskLock(ctx, task, runDesc)
}

func (dbStore) UpdateNotifyTime(ctx context.Context, task model.TaskName, notifyTime time.Time) error {
	return dao.UpdateTaskLockNotifyTime(ctx, task, notifyTime)
}
