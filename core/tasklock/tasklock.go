package tasklock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("tasklock")

// TaskLock is the per-task façade over one persistent lock row. Each
// recurring job owns exactly one lock; do not mutate the row except through
// these methods.
//
// The usage protocol for a job cycle:
//
//	ok, err := lock.Acquire(ctx, expireTime)
//	if !ok {
//		return // another host owns this cycle
//	}
//	runDesc := "success"
//	lock.MarkStartTask(ctx, nil)
//	if err := doTask(); err != nil {
//		runDesc = err.Error()
//	}
//	if ok, _ := lock.Release(ctx, runDesc); !ok {
//		lock.NotifyUnreleased(ctx)
//	}
type TaskLock struct {
	task   model.TaskName
	store  Store
	mailer Mailer
	users  UserDirectory
	brand  string
	nowFn  func() time.Time

	mu       sync.Mutex
	lock     *model.TimedTaskLock
	isLocked bool
}

func newTaskLock(task model.TaskName, store Store, mailer Mailer, users UserDirectory, brand string) *TaskLock {
	return &TaskLock{
		task:   task,
		store:  store,
		mailer: mailer,
		users:  users,
		brand:  brand,
		nowFn:  time.Now,
	}
}

func (t *TaskLock) Task() model.TaskName {
	return t.task
}

// ensureLock lazily loads (and creates) the backing row.
func (t *TaskLock) ensureLock(ctx context.Context) error {
	if t.lock != nil {
		return nil
	}

	lock, err := t.store.GetOrCreate(ctx, t.task)
	if err != nil {
		return err
	}
	t.lock = lock
	return nil
}

// Refresh reloads the backing row, for external observation such as the
// ops dashboard.
func (t *TaskLock) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lock == nil {
		return t.ensureLock(ctx)
	}

	lock, err := t.store.Get(ctx, t.task)
	if err != nil {
		return err
	}
	t.lock = lock
	return nil
}

// Acquire tries to take the lock for one run. On contention it returns
// ok=false with a LockContention error after evaluating whether the holder
// looks stuck and deserves a notification; that is the expected outcome
// when another host already owns this cycle, not a fault.
func (t *TaskLock) Acquire(ctx context.Context, expireTime time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !expireTime.After(t.nowFn()) {
		return false, errors.Newf(errors.InvalidParams, "lock expire time must be later than now")
	}

	ok, lock, err := t.store.Acquire(ctx, t.task, expireTime)
	if lock != nil {
		t.lock = lock
	}
	if ok {
		t.isLocked = true
		return true, nil
	}

	if errors.IsCode(err, errors.LockContention) {
		t.expiredUnreleasedNotify(ctx)
	}

	return false, err
}

// MarkStartTask records the run start on the held lock. It is a programming
// error to call it without a successful Acquire on this façade instance.
// The start time defaults to now; jobs that align to period boundaries can
// pass their own.
func (t *TaskLock) MarkStartTask(ctx context.Context, startTime *time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isLocked {
		return false, errors.Newf(errors.LockNotHeld,
			"mark_start requires a successful acquire on this lock first")
	}

	return t.store.MarkStart(ctx, t.lock, startTime)
}

// Release returns the task to idle and records the run outcome. It succeeds
// regardless of which façade instance acquired the lock; the mutex is
// name-based, there is no ownership token.
func (t *TaskLock) Release(ctx context.Context, runDesc string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, lock, err := t.store.Release(ctx, t.task, runDesc)
	if lock != nil {
		t.lock = lock
	}
	if ok {
		t.isLocked = false
		return true, nil
	}

	return false, err
}

// IsExpired reports whether the advisory expire time has passed. An unset
// expire time counts as expired.
func (t *TaskLock) IsExpired(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLock(ctx); err != nil {
		log.Errorf("load task lock %s: %v", t.task, err)
		return true
	}

	expire := t.lock.ExpireTime
	return expire == nil || expire.Before(t.nowFn())
}

// Snapshot accessors over the last loaded row. Call Refresh for fresh state.

func (t *TaskLock) Status() model.TaskLockStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return model.TaskLockStatusNone
	}
	return t.lock.Status
}

func (t *TaskLock) StartTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return nil
	}
	return t.lock.StartTime
}

func (t *TaskLock) EndTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return nil
	}
	return t.lock.EndTime
}

func (t *TaskLock) ExpireTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return nil
	}
	return t.lock.ExpireTime
}

func (t *TaskLock) NotifyTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return nil
	}
	return t.lock.NotifyTime
}

func (t *TaskLock) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return ""
	}
	return t.lock.Host
}

func (t *TaskLock) RunDesc() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lock == nil {
		return ""
	}
	return t.lock.RunDesc
}

// Row returns a copy of the last loaded row.
func (t *TaskLock) Row(ctx context.Context) (model.TimedTaskLock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureLock(ctx); err != nil {
		return model.TimedTaskLock{}, err
	}
	return *t.lock, nil
}

// expiredUnreleasedNotify runs after a failed acquire: a lock that is still
// running past its advisory expire time likely belongs to a crashed or hung
// holder. The lock is NOT auto-released; operators rely on an expired lock
// staying locked until someone looks at it, so the only automatic behavior
// is the mail. At most one mail goes out per calendar day per task.
func (t *TaskLock) expiredUnreleasedNotify(ctx context.Context) {
	tlock := t.lock
	if tlock == nil || tlock.Status != model.TaskLockStatusRunning {
		return
	}

	now := t.nowFn()
	if tlock.ExpireTime == nil || tlock.ExpireTime.After(now) {
		return
	}

	if tlock.NotifyTime != nil && sameDate(*tlock.NotifyTime, now) {
		return
	}

	if err := t.notifyUnreleasedLocked(ctx); err != nil {
		log.Errorf("notify unreleased lock %s: %v", t.task, err)
	}
}

// NotifyUnreleased mails every federal admin asking for a manual release of
// this lock. Job drivers call it directly when their own Release failed.
func (t *TaskLock) NotifyUnreleased(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notifyUnreleasedLocked(ctx)
}

func (t *TaskLock) notifyUnreleasedLocked(ctx context.Context) error {
	receivers, err := t.users.ListAdminUsernames(ctx)
	if err != nil {
		return err
	}
	if len(receivers) == 0 {
		return errors.New(errors.NoReceivers)
	}

	message := fmt.Sprintf(
		"Hello:\n\n%s backend timed task lock (%s) has passed its expire time without being released. "+
			"Please release the lock manually as soon as possible so the scheduled task can keep running.\n\nRegards\n",
		t.brand, t.task)

	err = t.mailer.SendEmail(ctx, "Timed task lock expired without release", receivers, message, "task-lock")
	if err != nil {
		return err
	}

	notifyTime := t.nowFn()
	if err := t.store.UpdateNotifyTime(ctx, t.task, notifyTime); err != nil {
		log.Errorf("record notify time for %s: %v", t.task, err)
		return nil
	}
	if t.lock != nil {
		t.lock.NotifyTime = &notifyTime
	}

	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
