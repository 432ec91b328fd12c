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
	"strings"
	"time"

	"github.com/ctessum/cdf"
)

// Partial is one piece of output from a provider: the variables it
// produced for a single period.
type Partial struct {
	Period Period
	Data   *Dataset
}

// NextPartial is a function that returns the next result from a
// provider. It returns io.EOF when there are no more results.
type NextPartial func() (*Partial, error)

// Input holds the information a provider needs to run a single task.
type Input struct {
	Grid    *Grid
	Periods []Period
	Params  Params

	// Source is the task's source file, if it has one. It is opened
	// before Run is called and closed after the results have been
	// consumed.
	Source *cdf.File
}

// Provider is a source of gridded data, for example a
// reanalysis product or a satellite archive.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Tasks splits the work of retrieving data for the given grid and
	// periods into independent tasks.
	Tasks(grid *Grid, periods []Period, params Params) ([]*Task, error)

	// Run carries out a single task. It may return a nil NextPartial
	// if the task has no output.
	Run(ctx context.Context, in *Input) (NextPartial, error)
}

// Granularity is the native time resolution of a provider's data.
type Granularity int

const (
	// SubDaily data has one or more samples per day at a fixed step.
	SubDaily Granularity = iota
	// DailyMeans data has one sample per calendar day.
	DailyMeans
	// Monthly data has one sample per month.
	Monthly
)

func (g Granularity) String() string {
	switch g {
	case SubDaily:
		return "subdaily"
	case DailyMeans:
		return "dailymeans"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// ParseGranularity parses the names returned by Granularity.String.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(s) {
	case "subdaily", "":
		return SubDaily, nil
	case "dailymeans":
		return DailyMeans, nil
	case "monthly":
		return Monthly, nil
	default:
		return SubDaily, fmt.Errorf("geodata: invalid granularity '%s'", s)
	}
}

// MetaProvider is a Provider that can describe the layout of its data.
type MetaProvider interface {
	Provider

	// Granularity returns the time resolution of the provider's data.
	Granularity() Granularity

	// LatSouthToNorth reports whether the provider's latitude coordinate
	// runs from south to north.
	LatSouthToNorth() bool

	// Probe returns a representative dataset for a single month,
	// holding x, y, and time coordinates and any schema attributes.
	Probe(ctx context.Context, x, y Range, year int, month time.Month, params Params) (*Dataset, error)
}
