package tasklock

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mimics the MySQL store in memory: one row per task, same-task
// mutations serialized under a single mutex.
type memStore struct {
	mu    sync.Mutex
	rows  map[model.TaskName]*model.TimedTaskLock
	nowFn func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		rows:  make(map[model.TaskName]*model.TimedTaskLock),
		nowFn: time.Now,
	}
}

func (s *memStore) getOrCreateLocked(task model.TaskName) *model.TimedTaskLock {
	row, ok := s.rows[task]
	if !ok {
		row = &model.TimedTaskLock{
			ID:     int64(len(s.rows) + 1),
			Task:   task,
			Status: model.TaskLockStatusNone,
		}
		s.rows[task] = row
	}
	return row
}

func copyRow(row *model.TimedTaskLock) *model.TimedTaskLock {
	cp := *row
	return &cp
}

func (s *memStore) GetOrCreate(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRow(s.getOrCreateLocked(task)), nil
}

func (s *memStore) Get(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[task]
	if !ok {
		return nil, errors.New(errors.NotFound)
	}
	return copyRow(row), nil
}

func (s *memStore) Acquire(ctx context.Context, task model.TaskName, expireTime time.Time) (bool, *model.TimedTaskLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.getOrCreateLocked(task)
	if row.Status == model.TaskLockStatusRunning {
		return false, copyRow(row), errors.Newf(errors.LockContention, "task lock %s is locked", task)
	}

	row.Status = model.TaskLockStatusRunning
	row.ExpireTime = &expireTime
	row.NotifyTime = nil
	return true, copyRow(row), nil
}

func (s *memStore) MarkStart(ctx context.Context, lock *model.TimedTaskLock, startTime *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if startTime == nil {
		now := s.nowFn()
		startTime = &now
	}
	row := s.getOrCreateLocked(lock.Task)
	row.StartTime = startTime
	row.Host = "testhost"
	lock.StartTime = startTime
	lock.Host = row.Host
	return true, nil
}

func (s *memStore) Release(ctx context.Context, task model.TaskName, runDesc string) (bool, *model.TimedTaskLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	row := s.getOrCreateLocked(task)
	row.Status = model.TaskLockStatusNone
	row.EndTime = &now
	row.RunDesc = runDesc
	row.ExpireTime = nil
	row.NotifyTime = nil
	return true, copyRow(row), nil
}

func (s *memStore) UpdateNotifyTime(ctx context.Context, task model.TaskName, notifyTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(task).NotifyTime = &notifyTime
	return nil
}

// faultStore exhausts a failure budget before delegating, standing in for
// a store whose internal write retry gave up.
type faultStore struct {
	*memStore
	markStartFailures int
	releaseFailures   int
}

func (s *faultStore) MarkStart(ctx context.Context, lock *model.TimedTaskLock, startTime *time.Time) (bool, error) {
	if s.markStartFailures > 0 {
		s.markStartFailures--
		return false, errors.Wrap(errors.PersistenceFailure, stderrors.New("write failed"))
	}
	return s.memStore.MarkStart(ctx, lock, startTime)
}

func (s *faultStore) Release(ctx context.Context, task model.TaskName, runDesc string) (bool, *model.TimedTaskLock, error) {
	if s.releaseFailures > 0 {
		s.releaseFailures--
		return false, nil, errors.Wrap(errors.PersistenceFailure, stderrors.New("write failed"))
	}
	return s.memStore.Release(ctx, task, runDesc)
}

type memMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *memMailer) SendEmail(ctx context.Context, subject string, receivers []string, message, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	return nil
}

func (m *memMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type memUsers struct {
	admins []string
}

func (u memUsers) ListAdminUsernames(ctx context.Context) ([]string, error) {
	return u.admins, nil
}

func newTestLock(task model.TaskName, store Store, mailer Mailer) *TaskLock {
	return newTaskLock(task, store, mailer, memUsers{admins: []string{"admin@example.com"}}, "cloudverse")
}

func TestTaskLockGetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lock := newTestLock(model.TaskMetering, store, &memMailer{})

	require.NoError(t, lock.Refresh(ctx))
	first, err := lock.Row(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TaskLockStatusNone, first.Status)

	require.NoError(t, lock.Refresh(ctx))
	second, err := lock.Row(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestTaskLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lock := newTestLock(model.TaskMetering, store, &memMailer{})

	ok, err := lock.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TaskLockStatusRunning, lock.Status())
	assert.False(t, lock.IsExpired(ctx))

	ok, err = lock.MarkStartTask(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, lock.StartTime())

	ok, err = lock.Release(ctx, "success")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TaskLockStatusNone, lock.Status())
	assert.Equal(t, "success", lock.RunDesc())
	assert.NotNil(t, lock.EndTime())
	assert.Nil(t, lock.ExpireTime())

	// the task can be taken again after release
	ok, err = lock.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTaskLockContention(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	holder := newTestLock(model.TaskScan, store, &memMailer{})
	other := newTestLock(model.TaskScan, store, &memMailer{})

	ok, err := holder.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = other.Acquire(ctx, time.Now().Add(time.Hour))
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.LockContention))

	// release has no ownership token, any façade may do it
	ok, err = other.Release(ctx, "released by other")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = other.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTaskLockConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	const workers = 16
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := newTestLock(model.TaskReqCount, store, &memMailer{})
			ok, _ := lock.Acquire(ctx, time.Now().Add(time.Hour))
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestTaskLockMarkStartRequiresAcquire(t *testing.T) {
	ctx := context.Background()
	lock := newTestLock(model.TaskMetering, newMemStore(), &memMailer{})

	ok, err := lock.MarkStartTask(ctx, nil)
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.LockNotHeld))
}

func TestTaskLockAcquireRejectsPastExpire(t *testing.T) {
	ctx := context.Background()
	lock := newTestLock(model.TaskMetering, newMemStore(), &memMailer{})

	ok, err := lock.Acquire(ctx, time.Now().Add(-time.Minute))
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.InvalidParams))
}

func TestTaskLockIsExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lock := newTestLock(model.TaskMetering, store, &memMailer{})

	// a lock with no expire time counts as expired
	assert.True(t, lock.IsExpired(ctx))

	ok, err := lock.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, lock.IsExpired(ctx))
}

func TestTaskLockStuckNotifyThrottled(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	mailer := &memMailer{}

	day1 := time.Date(2025, time.June, 10, 8, 0, 0, 0, time.UTC)
	now := day1
	nowFn := func() time.Time { return now }
	store.nowFn = nowFn

	holder := newTestLock(model.TaskMetering, store, mailer)
	holder.nowFn = nowFn
	ok, err := holder.Acquire(ctx, day1.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	// the holder crashes; its expire time passes without a release
	now = day1.Add(2 * time.Hour)

	other := newTestLock(model.TaskMetering, store, mailer)
	other.nowFn = nowFn

	ok, err = other.Acquire(ctx, now.Add(time.Hour))
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.LockContention))
	assert.Equal(t, 1, mailer.count())

	// same calendar day, no second mail
	now = day1.Add(5 * time.Hour)
	ok, _ = other.Acquire(ctx, now.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, 1, mailer.count())

	// next day the throttle resets
	now = day1.Add(24 * time.Hour)
	ok, _ = other.Acquire(ctx, now.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, 2, mailer.count())

	// the lock itself is never auto released
	assert.Equal(t, model.TaskLockStatusRunning, other.Status())
}

func TestTaskLockMarkStartWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultStore{memStore: newMemStore(), markStartFailures: 1}
	lock := newTestLock(model.TaskMetering, store, &memMailer{})

	ok, err := lock.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	// the store gave up writing; the in-memory row must not move
	ok, err = lock.MarkStartTask(ctx, nil)
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.PersistenceFailure))
	assert.Nil(t, lock.StartTime())
	assert.Equal(t, model.TaskLockStatusRunning, lock.Status())

	// the lock is still held, a later attempt goes through
	ok, err = lock.MarkStartTask(ctx, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, lock.StartTime())
}

func TestTaskLockReleaseWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultStore{memStore: newMemStore(), releaseFailures: 1}
	lock := newTestLock(model.TaskMetering, store, &memMailer{})

	ok, err := lock.Acquire(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Release(ctx, "done")
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.PersistenceFailure))
	assert.Equal(t, model.TaskLockStatusRunning, lock.Status())

	// nobody else can take the task while the release is pending
	other := newTestLock(model.TaskMetering, store, &memMailer{})
	ok, err = other.Acquire(ctx, time.Now().Add(time.Hour))
	assert.False(t, ok)
	assert.True(t, errors.IsCode(err, errors.LockContention))

	ok, err = lock.Release(ctx, "done")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.TaskLockStatusNone, lock.Status())
}

func TestTaskLockNotifyNoReceivers(t *testing.T) {
	ctx := context.Background()
	lock := newTaskLock(model.TaskMetering, newMemStore(), &memMailer{}, memUsers{}, "cloudverse")

	err := lock.NotifyUnreleased(ctx)
	assert.True(t, errors.IsCode(err, errors.NoReceivers))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(newMemStore(), &memMailer{}, memUsers{admins: []string{"admin@example.com"}}, "cloudverse")

	lock, err := reg.Get(model.TaskMetering)
	require.NoError(t, err)
	assert.Equal(t, model.TaskMetering, lock.Task())

	_, err = reg.Get(model.TaskName("no-such-task"))
	assert.True(t, errors.IsCode(err, errors.InvalidTaskName))

	all := reg.All()
	assert.Len(t, all, len(model.TaskNames))
	assert.Equal(t, model.TaskNames[0], all[0].Task())
}
