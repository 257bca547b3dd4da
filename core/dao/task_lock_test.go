package dao

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cloudverse/metering-center/config"
	"github.com/cloudverse/metering-center/core/model"
)

func TestWithSingleRetry(t *testing.T) {
	calls := 0
	err := withSingleRetry(func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}

	calls = 0
	err = withSingleRetry(func() error {
		calls++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected the second failure to surface")
	}
	if calls != 2 {
		t.Fatalf("retry must stop after one attempt, got %d calls", calls)
	}
}

func initTestDB(t *testing.T) {
	dsn := os.Getenv("METERING_TEST_DSN")
	if dsn == "" {
		t.Skip("METERING_TEST_DSN not set")
	}

	cfg := &config.Config{DatabaseURL: dsn}
	if err := initMysql(cfg); err != nil {
		t.Fatalf("init mysql: %v", err)
	}
}

func TestTaskLockRoundTrip(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	task := model.TaskScan

	lock, err := GetOrCreateTaskLock(ctx, task)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if lock.Task != task {
		t.Fatalf("unexpected task %s", lock.Task)
	}

	ok, lock, err := AcquireTaskLock(ctx, task, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("lock %s already held, release it before running the test", task)
	}

	if ok, _, _ := AcquireTaskLock(ctx, task, time.Now().Add(time.Hour)); ok {
		t.Fatalf("second acquire should have been refused")
	}

	if ok, err := MarkTaskLockStart(ctx, lock, nil); err != nil || !ok {
		t.Fatalf("mark start: ok=%v err=%v", ok, err)
	}

	ok, lock, err = ReleaseTaskLock(ctx, task, "round trip test")
	if err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}
	if lock.Status != model.TaskLockStatusNone {
		t.Fatalf("expected released status, got %s", lock.Status)
	}
	if lock.ExpireTime != nil {
		t.Fatalf("expire time should be cleared on release")
	}
}
