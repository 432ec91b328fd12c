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
	"fmt"
	"regexp"
)

// Task describes one independent unit of work for a provider.
// Tasks are not modified after they are created.
type Task struct {
	provider     Provider
	grid         *Grid
	periods      []Period
	params       Params
	source       string
	destinations map[Period]string
}

// NewTask creates a new task for provider p covering the given grid
// and periods. source is the path to a file that is opened for the
// duration of the task; it may be empty.
func NewTask(p Provider, grid *Grid, periods []Period, params Params, source string) (*Task, error) {
	if p == nil {
		return nil, fmt.Errorf("geodata: task has no provider")
	}
	if grid == nil {
		return nil, fmt.Errorf("geodata: task for provider %s has no grid", p.Name())
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("geodata: task for provider %s has no periods", p.Name())
	}
	t := &Task{
		provider: p,
		grid:     grid,
		periods:  append([]Period(nil), periods...),
		params:   params.Copy(),
		source:   source,
	}
	return t, nil
}

// Provider returns the provider that carries out the task.
func (t *Task) Provider() Provider { return t.provider }

// Grid returns the task's spatial grid.
func (t *Task) Grid() *Grid { return t.grid }

// Periods returns a copy of the periods the task covers.
func (t *Task) Periods() []Period { return append([]Period(nil), t.periods...) }

// Params returns a copy of the task's provider parameters.
func (t *Task) Params() Params { return t.params.Copy() }

// Source returns the path of the task's source file, if any.
func (t *Task) Source() string { return t.source }

// Destination returns the file that output for period p should
// be written to.
func (t *Task) Destination(p Period) (string, bool) {
	d, ok := t.destinations[p]
	return d, ok
}

// HasDestinations reports whether t writes its output to files.
func (t *Task) HasDestinations() bool { return t.destinations != nil }

// WithDestinations returns a copy of t that writes its output to the
// given files. t itself is not changed.
func (t *Task) WithDestinations(dest map[Period]string) *Task {
	o := *t
	o.destinations = make(map[Period]string, len(dest))
	for p, f := range dest {
		o.destinations[p] = f
	}
	return &o
}

// Series is a named group of variables retrieved from a single provider.
type Series struct {
	Name     string
	Provider Provider
	Params   Params
}

var seriesName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// NewSeries returns a new series after checking its fields.
func NewSeries(name string, p Provider, params Params) (*Series, error) {
	if !seriesName.MatchString(name) {
		return nil, fmt.Errorf("geodata: invalid series name '%s'", name)
	}
	if p == nil {
		return nil, fmt.Errorf("geodata: series %s has no provider", name)
	}
	if params == nil {
		params = make(Params)
	}
	return &Series{Name: name, Provider: p, Params: params}, nil
}
