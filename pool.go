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
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool runs tasks concurrently with a bounded number of workers.
type Pool struct {
	// Workers is the maximum number of tasks to run at once.
	// If it is <= 0, runtime.GOMAXPROCS(-1) is used.
	Workers int

	Log logrus.FieldLogger
}

func (p *Pool) workers() int {
	if p.Workers <= 0 {
		return runtime.GOMAXPROCS(-1)
	}
	return p.Workers
}

// RunAll calls fn for each task and blocks until every call has returned
// or one has failed. After the first failure no more tasks are
// started, the context passed to running calls is canceled, and the
// failure is returned as a *TaskExecutionError. If ctx is canceled,
// ctx.Err() is returned instead.
func (p *Pool) RunAll(ctx context.Context, tasks []*Task, fn func(context.Context, *Task) error) error {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := p.workers()
	log.WithFields(logrus.Fields{"tasks": len(tasks), "workers": n}).Info("running tasks")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for _, t := range tasks {
		if gctx.Err() != nil {
			break // A task has failed; stop dispatching.
		}
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, t); err != nil {
				if ctx.Err() != nil {
					return ctx.Err() // canceled by the caller
				}
				return &TaskExecutionError{
					Provider: t.provider.Name(),
					Periods:  t.Periods(),
					Err:      err,
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
