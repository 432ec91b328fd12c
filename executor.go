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
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
)

// Execute runs task t. If write is true, each result is written to the
// task's destination file for its period and no results are returned;
// results with no data are skipped. If write is false, the results are
// returned and no files are written.
//
// Errors from the provider or from writing output are logged and
// returned unchanged.
func Execute(ctx context.Context, t *Task, write bool, log logrus.FieldLogger) ([]*Partial, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{
		"provider": t.provider.Name(),
		"periods":  joinPeriods(t.periods),
	})
	partials, err := execute(ctx, t, write, log)
	if err != nil {
		log.WithField("params", t.params).WithError(err).Error("task failed")
		return nil, err
	}
	return partials, nil
}

func execute(ctx context.Context, t *Task, write bool, log logrus.FieldLogger) ([]*Partial, error) {
	in := &Input{
		Grid:    t.grid,
		Periods: t.Periods(),
		Params:  t.Params(),
	}
	if t.source != "" {
		r, err := os.Open(t.source)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		f, err := cdf.Open(r)
		if err != nil {
			return nil, fmt.Errorf("geodata: opening task source %s: %w", t.source, err)
		}
		in.Source = f
	}

	next, err := t.provider.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	if next == nil {
		log.Debug("task has no output")
		return nil, nil
	}

	var o []*Partial
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if !write {
			o = append(o, p)
			continue
		}
		if p == nil || p.Data.Empty() {
			continue
		}
		dest, ok := t.Destination(p.Period)
		if !ok {
			return nil, &InvariantViolationError{
				Provider: t.provider.Name(),
				Msg:      fmt.Sprintf("returned data for period %s, which has no destination", p.Period),
			}
		}
		if err := p.Data.WriteFile(dest); err != nil {
			return nil, err
		}
		log.WithField("file", dest).Debug("wrote partial result")
	}
	return o, nil
}
