package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/webcomponents/catalog/pkg/async"
)

func TestOutboxQueue_Enqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pending_tasks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin failed: %v", err)
	}
	q := NewOutboxQueue(tx)
	if err := q.Enqueue(context.Background(), Task{QueueName: "update", Path: "/task/update/widget"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInProcessQueue_Enqueue(t *testing.T) {
	ctx := context.Background()
	pool := async.NewWorkerPool(ctx, 2, "test-queue", 5*time.Second)
	defer pool.Shutdown(time.Second)

	dispatched := make(chan Task, 1)
	q := NewInProcessQueue(pool, func(ctx context.Context, t Task) error {
		dispatched <- t
		return nil
	})

	if err := q.Enqueue(ctx, Task{QueueName: "default", Path: "/task/ensure/widget"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case got := <-dispatched:
		if got.Path != "/task/ensure/widget" {
			t.Errorf("unexpected dispatched task: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}
