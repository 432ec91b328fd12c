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
	"time"

	"github.com/ctessum/sparse"
)

// testDataset returns a dataset on the given coordinates with one
// variable on (time, y, x) for each name in vars. The values of the
// ith variable are offset by i.
func testDataset(xs, ys []float64, times []time.Time, vars ...string) *Dataset {
	d := NewDataset()
	d.SetCoord("x", xs)
	d.SetCoord("y", ys)
	d.SetTimes(times)
	for i, v := range vars {
		data := sparse.ZerosDense(len(times), len(ys), len(xs))
		for j := range data.Elements {
			data.Elements[j] = float64(i) + float64(j)/4
		}
		d.AddVariable(v, []string{"time", "y", "x"}, v+" description", "m", data)
	}
	return d
}

// fakeProvider creates one task per period and returns one result
// for each task.
type fakeProvider struct {
	name string
	vars []string

	// fail causes the task for the given period to fail.
	fail map[Period]error

	// empty causes the task for the given period to produce no data.
	empty map[Period]bool

	// xShift is added to the x coordinates of the output.
	xShift float64

	// tasks, if > 0, is the number of tasks to return regardless of
	// the number of periods.
	tasks int

	// results, if > 0, is the number of results each task returns.
	results int

	// wrongPeriod causes results to be labeled with the following period.
	wrongPeriod bool

	// block causes tasks to wait until their context is canceled.
	block bool

	runs chan Period
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Tasks(grid *Grid, periods []Period, params Params) ([]*Task, error) {
	if f.tasks > 0 {
		var o []*Task
		for i := 0; i < f.tasks; i++ {
			t, err := NewTask(f, grid, periods, params, "")
			if err != nil {
				return nil, err
			}
			o = append(o, t)
		}
		return o, nil
	}
	o := make([]*Task, len(periods))
	for i, p := range periods {
		t, err := NewTask(f, grid, []Period{p}, params, "")
		if err != nil {
			return nil, err
		}
		o[i] = t
	}
	return o, nil
}

func (f *fakeProvider) Run(ctx context.Context, in *Input) (NextPartial, error) {
	p := in.Periods[0]
	if f.runs != nil {
		f.runs <- p
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.fail[p]; ok {
		return nil, err
	}
	if f.empty[p] {
		return nil, nil
	}
	n := f.results
	if n == 0 {
		n = 1
	}
	xs := make([]float64, len(in.Grid.Xs))
	for i, x := range in.Grid.Xs {
		xs[i] = x + f.xShift
	}
	d := testDataset(xs, in.Grid.Ys, []time.Time{p.Start()}, f.vars...)
	if f.wrongPeriod {
		p = Period{Year: p.Year, Month: p.Month + 1}
	}
	var i int
	return func() (*Partial, error) {
		if i == n {
			return nil, io.EOF
		}
		i++
		return &Partial{Period: p, Data: d}, nil
	}, nil
}

// probeProvider is a MetaProvider whose probe returns the given
// time samples.
type probeProvider struct {
	fakeProvider
	granularity  Granularity
	southToNorth bool
	times        []time.Time
	xs, ys       []float64

	probeYear  int
	probeMonth time.Month
	probeY     Range

	// bare causes the probe to return a dataset without attributes.
	bare bool
}

func (p *probeProvider) Granularity() Granularity { return p.granularity }
func (p *probeProvider) LatSouthToNorth() bool    { return p.southToNorth }

func (p *probeProvider) Probe(ctx context.Context, x, y Range, year int, month time.Month, params Params) (*Dataset, error) {
	p.probeYear, p.probeMonth, p.probeY = year, month, y
	d := &Dataset{}
	d.SetCoord("x", pick(p.xs, x.Indices(p.xs)))
	d.SetCoord("y", pick(p.ys, y.Indices(p.ys)))
	d.SetTimes(p.times)
	if !p.bare {
		d.Attrs = map[string]string{"module": "test"}
	}
	return d, nil
}

func pick(v []float64, idx []int) []float64 {
	o := make([]float64, len(idx))
	for i, j := range idx {
		o[i] = v[j]
	}
	return o
}

// hourly returns hourly times for the whole of period p, offset by
// the given number of hours, with the given step in hours.
func hourly(p Period, offset, step int) []time.Time {
	var o []time.Time
	for t := p.Start().Add(time.Duration(offset) * time.Hour); t.Before(p.End()); t = t.Add(time.Duration(step) * time.Hour) {
		o = append(o, t)
	}
	return o
}

func testMeta(periods ...Period) *Meta {
	d := NewDataset()
	d.SetCoord("x", []float64{1, 2, 3})
	d.SetCoord("y", []float64{5, 4})
	d.Attrs["module"] = "test"
	grid, err := NewGrid(d.Coords["x"], d.Coords["y"])
	if err != nil {
		panic(err)
	}
	var times []time.Time
	for _, p := range periods {
		times = append(times, p.Start())
	}
	d.SetTimes(times)
	return &Meta{Dataset: d, Grid: grid, Periods: periods}
}

var errTest = fmt.Errorf("test error")
