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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Meta describes the coordinates and time axis of a cutout.
type Meta struct {
	// Dataset holds the x, y, time, year, and month coordinates
	// along with the attributes of the data source.
	Dataset *Dataset

	// Grid is the spatial grid of the cutout.
	Grid *Grid

	// Periods are all combinations of the requested years and months.
	Periods []Period
}

// ResolveMeta probes provider mp for a single month of data and
// extrapolates the result to describe the full range of the requested
// years and months. If months is nil, all months are used. If the
// direction of y does not match the direction of the provider's
// latitude coordinate, y is reversed and a warning is logged.
func ResolveMeta(ctx context.Context, mp MetaProvider, x, y Range, years YearRange, months *MonthRange, params Params, log logrus.FieldLogger) (*Meta, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if months == nil {
		m := AllMonths
		months = &m
	}
	if err := years.validate(); err != nil {
		return nil, err
	}
	if err := months.validate(); err != nil {
		return nil, err
	}
	y = normalizeLatDirection(mp.LatSouthToNorth(), y, log)

	ds, err := mp.Probe(ctx, x, y, years.Stop, months.Stop, params)
	if err != nil {
		return nil, fmt.Errorf("geodata: probing provider %s: %w", mp.Name(), err)
	}
	if ds == nil {
		return nil, &SchemaInferenceError{Provider: mp.Name(), Reason: "probe returned no dataset"}
	}
	if ds.Attrs == nil {
		ds.Attrs = make(map[string]string)
	}
	for k, v := range params {
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			ds.Attrs[k] = s
		}
	}

	first := Period{Year: years.Start, Month: months.Start}
	last := Period{Year: years.Stop, Month: months.Stop}
	var times []time.Time
	switch mp.Granularity() {
	case SubDaily:
		times, err = subDailyAxis(mp.Name(), ds.Times(), first, last)
		if err != nil {
			return nil, err
		}
	case DailyMeans:
		for t := first.Start(); t.Before(last.End()); t = t.AddDate(0, 0, 1) {
			times = append(times, t)
		}
	case Monthly:
		for t := first.Start(); t.Before(last.End()); t = t.AddDate(0, 1, 0) {
			times = append(times, t)
		}
	default:
		return nil, &SchemaInferenceError{Provider: mp.Name(),
			Reason: fmt.Sprintf("unsupported granularity %d", mp.Granularity())}
	}

	// Variables along the probe's time axis no longer match it.
	for name, v := range ds.Data {
		for _, d := range v.Dims {
			if d == "time" {
				delete(ds.Data, name)
				break
			}
		}
	}
	ds.SetTimes(times)

	yearCoord := make([]float64, 0, years.Stop-years.Start+1)
	for yr := years.Start; yr <= years.Stop; yr++ {
		yearCoord = append(yearCoord, float64(yr))
	}
	monthCoord := make([]float64, 0, months.Stop-months.Start+1)
	for m := months.Start; m <= months.Stop; m++ {
		monthCoord = append(monthCoord, float64(m))
	}
	ds.SetCoord("year", yearCoord)
	ds.SetCoord("month", monthCoord)

	grid, err := NewGrid(ds.Coords["x"], ds.Coords["y"])
	if err != nil {
		return nil, &SchemaInferenceError{Provider: mp.Name(), Reason: err.Error()}
	}
	log.WithFields(logrus.Fields{
		"provider":    mp.Name(),
		"granularity": mp.Granularity(),
		"times":       len(times),
	}).Debug("resolved metadata")
	return &Meta{
		Dataset: ds,
		Grid:    grid,
		Periods: StackPeriods(years, *months),
	}, nil
}

// subDailyAxis extrapolates the probe's time samples, which lie in
// period last, to cover every period from first to last at the step
// between the first two samples.
func subDailyAxis(provider string, sample []time.Time, first, last Period) ([]time.Time, error) {
	if len(sample) < 2 {
		return nil, &SchemaInferenceError{Provider: provider,
			Reason: fmt.Sprintf("need at least 2 time samples to infer the time step but have %d", len(sample))}
	}
	step := sample[1].Sub(sample[0])
	if step <= 0 || step%time.Hour != 0 {
		return nil, &SchemaInferenceError{Provider: provider,
			Reason: fmt.Sprintf("time step %v is not a positive whole number of hours", step)}
	}
	offsetStart := sample[0].Sub(last.Start())
	offsetEnd := sample[len(sample)-1].Sub(last.End())

	start := first.Start().Add(offsetStart)
	end := last.End().Add(offsetEnd)
	var o []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		o = append(o, t)
	}
	return o, nil
}
