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

// Package ncmonthly provides gridded data from archives that are
// stored as one netcdf file per month.
package ncmonthly

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/spatialmodel/geodata"
)

// DefaultDateFormat is the default format of the date in
// file names.
const DefaultDateFormat = "200601"

// coordTolerance is the largest difference between a grid coordinate
// and a file coordinate for them to be considered the same.
const coordTolerance = 1.0e-6

// NCMonthly reads data from netcdf files that each hold one month of
// data. Data variables must have dimensions "time", "y", and "x", and
// the files must have coordinate variables of the same names.
type NCMonthly struct {
	// FileTemplate is the path to the data files, where [DATE]
	// is replaced by the month of the data in each file.
	FileTemplate string

	// DateFormat is the layout of the date in the file names, in
	// the format of time.Format. If empty, DefaultDateFormat is used.
	DateFormat string

	// Variables are the names of the variables to read. If empty,
	// all variables with dimensions time, y, and x are read.
	Variables []string

	// Resolution is the time resolution of the data.
	Resolution geodata.Granularity

	// SouthToNorth should be true if the y coordinate in the
	// files increases from south to north.
	SouthToNorth bool
}

// Name returns the name of the provider.
func (n *NCMonthly) Name() string { return "ncmonthly" }

// Granularity returns n.Resolution.
func (n *NCMonthly) Granularity() geodata.Granularity { return n.Resolution }

// LatSouthToNorth returns n.SouthToNorth.
func (n *NCMonthly) LatSouthToNorth() bool { return n.SouthToNorth }

// File returns the path to the file holding data for period p.
func (n *NCMonthly) File(p geodata.Period) string {
	format := n.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}
	return strings.Replace(n.FileTemplate, "[DATE]", p.Start().Format(format), -1)
}

// Tasks returns one task for each period. Periods that do not have
// a data file get a task without a source file, which produces no data.
func (n *NCMonthly) Tasks(grid *geodata.Grid, periods []geodata.Period, params geodata.Params) ([]*geodata.Task, error) {
	if n.FileTemplate == "" {
		return nil, fmt.Errorf("ncmonthly: file template must be specified")
	}
	tasks := make([]*geodata.Task, 0, len(periods))
	for _, p := range periods {
		src := n.File(p)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			src = ""
		} else if err != nil {
			return nil, fmt.Errorf("ncmonthly: %v", err)
		}
		t, err := geodata.NewTask(n, grid, []geodata.Period{p}, params, src)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Run reads the requested variables from in.Source and subsets them
// to in.Grid.
func (n *NCMonthly) Run(ctx context.Context, in *geodata.Input) (geodata.NextPartial, error) {
	if in.Source == nil {
		return nil, nil
	}
	if len(in.Periods) != 1 {
		return nil, fmt.Errorf("ncmonthly: tasks must have exactly one period but have %d", len(in.Periods))
	}
	src, err := geodata.DatasetFromFile(in.Source)
	if err != nil {
		return nil, err
	}
	d, err := n.subset(src, in.Grid)
	if err != nil {
		return nil, err
	}
	var done bool
	return func() (*geodata.Partial, error) {
		if done {
			return nil, io.EOF
		}
		done = true
		return &geodata.Partial{Period: in.Periods[0], Data: d}, nil
	}, nil
}

func (n *NCMonthly) subset(src *geodata.Dataset, grid *geodata.Grid) (*geodata.Dataset, error) {
	xi, err := matchCoords(src.Coords["x"], grid.Xs)
	if err != nil {
		return nil, fmt.Errorf("ncmonthly: x coordinate: %v", err)
	}
	yi, err := matchCoords(src.Coords["y"], grid.Ys)
	if err != nil {
		return nil, fmt.Errorf("ncmonthly: y coordinate: %v", err)
	}
	times, ok := src.Coords["time"]
	if !ok {
		return nil, fmt.Errorf("ncmonthly: file has no time coordinate")
	}

	names := n.Variables
	if len(names) == 0 {
		for _, name := range src.VariableNames() {
			if isGridded(src.Data[name].Dims) {
				names = append(names, name)
			}
		}
	}

	o := geodata.NewDataset()
	o.SetCoord("time", times)
	o.SetCoord("y", grid.Ys)
	o.SetCoord("x", grid.Xs)
	for k, v := range src.Attrs {
		o.Attrs[k] = v
	}
	for _, name := range names {
		v, ok := src.Data[name]
		if !ok {
			return nil, fmt.Errorf("ncmonthly: variable %s is not in file", name)
		}
		if !isGridded(v.Dims) {
			return nil, fmt.Errorf("ncmonthly: variable %s has dimensions %v; it should have [time y x]", name, v.Dims)
		}
		data := sparse.ZerosDense(len(times), len(yi), len(xi))
		for t := range times {
			for j, jj := range yi {
				for i, ii := range xi {
					data.Set(v.Data.Get(t, jj, ii), t, j, i)
				}
			}
		}
		o.AddVariable(name, []string{"time", "y", "x"}, v.Description, v.Units, data)
	}
	return o, nil
}

func isGridded(dims []string) bool {
	return len(dims) == 3 && dims[0] == "time" && dims[1] == "y" && dims[2] == "x"
}

// matchCoords returns the index in have of each value in want.
func matchCoords(have, want []float64) ([]int, error) {
	o := make([]int, len(want))
	for i, w := range want {
		found := false
		for j, h := range have {
			if math.Abs(h-w) <= coordTolerance {
				o[i] = j
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("value %g is not in file", w)
		}
	}
	return o, nil
}

// Probe returns the coordinates of the data for the given month,
// subset to ranges x and y, along with the global attributes of
// the data file.
func (n *NCMonthly) Probe(ctx context.Context, x, y geodata.Range, year int, month time.Month, params geodata.Params) (*geodata.Dataset, error) {
	path := n.File(geodata.Period{Year: year, Month: month})
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncmonthly: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("ncmonthly: opening %s: %v", path, err)
	}
	src, err := geodata.DatasetFromFile(ff)
	if err != nil {
		return nil, err
	}
	o := geodata.NewDataset()
	for k, v := range src.Attrs {
		o.Attrs[k] = v
	}
	o.SetCoord("time", src.Coords["time"])
	o.SetCoord("x", pick(src.Coords["x"], x.Indices(src.Coords["x"])))
	o.SetCoord("y", pick(src.Coords["y"], y.Indices(src.Coords["y"])))
	if len(o.Coords["x"]) == 0 || len(o.Coords["y"]) == 0 {
		return nil, fmt.Errorf("ncmonthly: no data in %s within x range %v and y range %v", path, x, y)
	}
	return o, nil
}

func pick(v []float64, idx []int) []float64 {
	o := make([]float64, len(idx))
	for i, j := range idx {
		o[i] = v[j]
	}
	return o
}
