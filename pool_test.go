/*
Copyright © 2020 the geodata authors.
This file is part of geodata.

geodata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geodata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geodata.  If not, see <http://www.gnu.org/licenses/>.
*/

package geodata

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func poolTasks(t *testing.T, n int) []*Task {
	p := &fakeProvider{name: "pool"}
	grid, err := NewGrid([]float64{1}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i], err = NewTask(p, grid, []Period{{Year: 2000 + i, Month: time.January}}, nil, "")
		if err != nil {
			t.Fatal(err)
		}
	}
	return tasks
}

func TestPool_RunAll(t *testing.T) {
	var n int32
	pool := &Pool{Workers: 3}
	err := pool.RunAll(context.Background(), poolTasks(t, 10), func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&n, 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("ran %d tasks; want 10", n)
	}
}

func TestPool_firstFailure(t *testing.T) {
	tasks := poolTasks(t, 4)
	pool := &Pool{Workers: 4}
	err := pool.RunAll(context.Background(), tasks, func(ctx context.Context, task *Task) error {
		if task == tasks[2] {
			return errTest
		}
		<-ctx.Done() // The other tasks run until they are canceled.
		return ctx.Err()
	})
	var tErr *TaskExecutionError
	if !errors.As(err, &tErr) {
		t.Fatalf("want TaskExecutionError, have %v", err)
	}
	if !errors.Is(err, errTest) {
		t.Errorf("original error is not available: %v", err)
	}
	if tErr.Provider != "pool" || len(tErr.Periods) != 1 || tErr.Periods[0].Year != 2002 {
		t.Errorf("error context: %+v", tErr)
	}
}

func TestPool_stopDispatch(t *testing.T) {
	var n int32
	pool := &Pool{Workers: 1}
	err := pool.RunAll(context.Background(), poolTasks(t, 10), func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&n, 1)
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Errorf("have error %v", err)
	}
	if n != 1 {
		t.Errorf("ran %d tasks after the first failure", n-1)
	}
}

func TestPool_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var n int32
	pool := &Pool{}
	err := pool.RunAll(ctx, poolTasks(t, 5), func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&n, 1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("have error %v", err)
	}
	if n != 0 {
		t.Errorf("ran %d tasks", n)
	}
}

func TestPool_interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tasks := poolTasks(t, 3)
	started := make(chan struct{}, len(tasks))
	done := make(chan error)
	pool := &Pool{Workers: len(tasks)}
	go func() {
		done <- pool.RunAll(ctx, tasks, func(ctx context.Context, task *Task) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	for range tasks {
		<-started
	}
	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("have error %v, want %v", err, context.Canceled)
	}
	var tErr *TaskExecutionError
	if errors.As(err, &tErr) {
		t.Errorf("an interruption should not be reported as a task failure: %v", err)
	}
}
