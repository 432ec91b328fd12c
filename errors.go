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
	"strings"
)

// AlreadyPreparedError is returned by Prepare when the cutout has
// already been prepared and overwriting was not requested.
type AlreadyPreparedError struct {
	Name string // cutout name
	Dir  string // archive directory
}

func (e *AlreadyPreparedError) Error() string {
	return fmt.Sprintf("geodata: cutout '%s' in %s is already prepared; "+
		"prepare it with overwrite set to recalculate it", e.Name, e.Dir)
}

// SchemaInferenceError is returned when a provider's metadata probe
// does not carry enough information to build the time axis.
type SchemaInferenceError struct {
	Provider string
	Reason   string
}

func (e *SchemaInferenceError) Error() string {
	return fmt.Sprintf("geodata: inferring time axis from provider %s: %s", e.Provider, e.Reason)
}

// TaskExecutionError wraps a failure that occurred while running
// a task, either inside the provider or while writing its output.
type TaskExecutionError struct {
	Provider string
	Periods  []Period
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("geodata: task with provider %s for periods [%s] failed: %v",
		e.Provider, joinPeriods(e.Periods), e.Err)
}

// Unwrap returns the original cause.
func (e *TaskExecutionError) Unwrap() error { return e.Err }

// MergeConflictError is returned when two datasets that are being
// merged disagree on a shared coordinate or variable.
type MergeConflictError struct {
	Name   string // name of the conflicting coordinate or variable
	Reason string
	Files  []string // source files, if known
}

func (e *MergeConflictError) Error() string {
	msg := fmt.Sprintf("geodata: merge conflict on '%s': %s", e.Name, e.Reason)
	if len(e.Files) > 0 {
		msg += fmt.Sprintf(" (files: %s)", strings.Join(e.Files, ", "))
	}
	return msg
}

// InvariantViolationError is returned when a provider returns
// a number of tasks or results that its caller does not allow.
type InvariantViolationError struct {
	Provider string
	Msg      string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("geodata: provider %s: %s", e.Provider, e.Msg)
}

func joinPeriods(periods []Period) string {
	s := make([]string, len(periods))
	for i, p := range periods {
		s[i] = p.String()
	}
	return strings.Join(s, ", ")
}
