package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/pkg/iptool"
)

const runDescMaxLen = 255

// withSingleRetry runs fn and retries exactly once on error. Task lock
// writes are never retried beyond that; a second failure is the caller's
// problem.
func withSingleRetry(fn func() error) error {
	if err := fn(); err == nil {
		return nil
	}
	return fn()
}

// GetOrCreateTaskLock lazily creates the lock row for a task name. Calling
// it twice never produces two rows.
func GetOrCreateTaskLock(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	if !task.Valid() {
		return nil, errors.New(errors.InvalidTaskName)
	}

	now := time.Now()
	_, err := DB.ExecContext(ctx, `
		INSERT IGNORE INTO timed_task_lock (task, status, host, run_desc, created_at, updated_at)
		VALUES (?, ?, '', '', ?, ?);`, task, model.TaskLockStatusNone, now, now)
	if err != nil {
		return nil, err
	}

	return GetTaskLock(ctx, task)
}

// GetTaskLock reloads the backing row, ErrNoRow when absent.
func GetTaskLock(ctx context.Context, task model.TaskName) (*model.TimedTaskLock, error) {
	if !task.Valid() {
		return nil, errors.New(errors.InvalidTaskName)
	}

	var lock model.TimedTaskLock
	err := DB.GetContext(ctx, &lock, `SELECT * FROM timed_task_lock WHERE task = ?`, task)
	if err == sql.ErrNoRows {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, err
	}

	return &lock, nil
}

// AcquireTaskLock tries to lock the task for one run. The row-level
// exclusive lock taken by SELECT ... FOR UPDATE is the only mutual-exclusion
// mechanism: across any number of racing hosts at most one acquire succeeds
// while the row is running, the rest fail fast with LockContention.
// A missing row is created lazily and the transaction retried once, as is a
// transient write failure. Contention is never retried; the cycle is simply
// someone else's.
func AcquireTaskLock(ctx context.Context, task model.TaskName, expireTime time.Time) (bool, *model.TimedTaskLock, error) {
	if !task.Valid() {
		return false, nil, errors.New(errors.InvalidTaskName)
	}

	ok, lock, err := acquireTaskLockTx(ctx, task, expireTime)
	if err == sql.ErrNoRows {
		if _, cerr := GetOrCreateTaskLock(ctx, task); cerr != nil {
			return false, nil, cerr
		}
		ok, lock, err = acquireTaskLockTx(ctx, task, expireTime)
	} else if err != nil && !errors.IsCode(err, errors.LockContention) {
		ok, lock, err = acquireTaskLockTx(ctx, task, expireTime)
	}

	if err != nil && err != sql.ErrNoRows && !errors.IsCode(err, errors.LockContention) {
		return ok, lock, errors.Wrap(errors.PersistenceFailure, err)
	}

	return ok, lock, err
}

func acquireTaskLockTx(ctx context.Context, task model.TaskName, expireTime time.Time) (bool, *model.TimedTaskLock, error) {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback()

	var lock model.TimedTaskLock
	err = tx.GetContext(ctx, &lock, `SELECT * FROM timed_task_lock WHERE task = ? FOR UPDATE`, task)
	if err != nil {
		return false, nil, err
	}

	if lock.Status == model.TaskLockStatusRunning {
		return false, &lock, errors.Newf(errors.LockContention, "locking, task(%s) is running", task)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE timed_task_lock SET status = ?, expire_time = ?, notify_time = NULL, updated_at = ?
		WHERE task = ?;`, model.TaskLockStatusRunning, expireTime, now, task)
	if err != nil {
		return false, &lock, err
	}

	if err := tx.Commit(); err != nil {
		return false, &lock, err
	}

	lock.Status = model.TaskLockStatusRunning
	lock.ExpireTime = &expireTime
	lock.NotifyTime = nil
	return true, &lock, nil
}

// MarkTaskLockStart records the run start on an already acquired lock:
// start time (defaults to now) and the holder host, clearing the previous
// run's end time and description. The in-memory lock is only mutated after
// the row update succeeds, so a failed call leaves it at its prior values.
func MarkTaskLockStart(ctx context.Context, lock *model.TimedTaskLock, startTime *time.Time) (bool, error) {
	start := time.Now()
	if startTime != nil {
		start = *startTime
	}
	host := iptool.LocalIPStr()

	err := withSingleRetry(func() error {
		_, err := DB.ExecContext(ctx, `
			UPDATE timed_task_lock SET start_time = ?, end_time = NULL, host = ?, run_desc = '', updated_at = ?
			WHERE task = ?;`, start, host, time.Now(), lock.Task)
		return err
	})
	if err != nil {
		return false, errors.Wrap(errors.PersistenceFailure, err)
	}

	lock.StartTime = &start
	lock.EndTime = nil
	lock.Host = host
	lock.RunDesc = ""
	return true, nil
}

// ReleaseTaskLock returns the task to idle unconditionally; there is no
// ownership token, only the name-based mutex. The outcome description is
// truncated to 255 characters. The write is retried once before giving up.
func ReleaseTaskLock(ctx context.Context, task model.TaskName, runDesc string) (bool, *model.TimedTaskLock, error) {
	if !task.Valid() {
		return false, nil, errors.New(errors.InvalidTaskName)
	}

	if len([]rune(runDesc)) > runDescMaxLen {
		runDesc = string([]rune(runDesc)[:runDescMaxLen])
	}

	var lock *model.TimedTaskLock
	err := withSingleRetry(func() error {
		var err error
		lock, err = releaseTaskLockTx(ctx, task, runDesc)
		return err
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil, ErrNoRow
		}
		return false, lock, errors.Wrap(errors.PersistenceFailure, err)
	}

	return true, lock, nil
}

func releaseTaskLockTx(ctx context.Context, task model.TaskName, runDesc string) (*model.TimedTaskLock, error) {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var lock model.TimedTaskLock
	err = tx.GetContext(ctx, &lock, `SELECT * FROM timed_task_lock WHERE task = ? FOR UPDATE`, task)
	if err != nil {
		return nil, err
	}

	endTime := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE timed_task_lock SET status = ?, end_time = ?, run_desc = ?, expire_time = NULL, notify_time = NULL, updated_at = ?
		WHERE task = ?;`, model.TaskLockStatusNone, endTime, runDesc, endTime, task)
	if err != nil {
		return &lock, err
	}

	if err := tx.Commit(); err != nil {
		return &lock, err
	}

	lock.Status = model.TaskLockStatusNone
	lock.EndTime = &endTime
	lock.RunDesc = runDesc
	lock.ExpireTime = nil
	lock.NotifyTime = nil
	return &lock, nil
}

// UpdateTaskLockNotifyTime records when a stuck-lock notification went out.
func UpdateTaskLockNotifyTime(ctx context.Context, task model.TaskName, notifyTime time.Time) error {
	if !task.Valid() {
		return errors.New(errors.InvalidTaskName)
	}

	_, err := DB.ExecContext(ctx, `
		UPDATE timed_task_lock SET notify_time = ?, updated_at = ? WHERE task = ?;`,
		notifyTime, time.Now(), task)
	return err
}
