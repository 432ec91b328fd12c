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
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Merge combines datasets into a single dataset holding the union of
// their coordinates and variables. Coordinates and variables that
// appear in more than one input must be identical in every input,
// otherwise a *MergeConflictError is returned. Global attributes are
// taken from the first input that sets them.
func Merge(datasets ...*Dataset) (*Dataset, error) {
	o := NewDataset()
	for _, d := range datasets {
		if d == nil {
			continue
		}
		for _, name := range sortedKeys(d.Coords) {
			c := d.Coords[name]
			if oc, ok := o.Coords[name]; ok {
				if len(oc) != len(c) {
					return nil, &MergeConflictError{Name: name,
						Reason: fmt.Sprintf("coordinate lengths differ (%d != %d)", len(oc), len(c))}
				}
				if !floats.Equal(oc, c) {
					return nil, &MergeConflictError{Name: name, Reason: "coordinate values differ"}
				}
				continue
			}
			o.Coords[name] = append([]float64(nil), c...)
		}
		for _, name := range d.VariableNames() {
			v := d.Data[name]
			if ov, ok := o.Data[name]; ok {
				if err := identicalVariables(name, ov, v); err != nil {
					return nil, err
				}
				continue
			}
			o.Data[name] = v
		}
		for k, v := range d.Attrs {
			if _, ok := o.Attrs[k]; !ok {
				o.Attrs[k] = v
			}
		}
	}
	return o, nil
}

func identicalVariables(name string, a, b Variable) error {
	if len(a.Dims) != len(b.Dims) {
		return &MergeConflictError{Name: name, Reason: "variable dimensions differ"}
	}
	for i := range a.Dims {
		if a.Dims[i] != b.Dims[i] {
			return &MergeConflictError{Name: name, Reason: "variable dimensions differ"}
		}
	}
	if a.Units != b.Units || a.Description != b.Description {
		return &MergeConflictError{Name: name, Reason: "variable attributes differ"}
	}
	if !floats.Equal(a.Data.Elements, b.Data.Elements) {
		return &MergeConflictError{Name: name, Reason: "variable values differ"}
	}
	return nil
}

// mergeFiles loads and merges the datasets in files, along with aux.
// Each file is closed after it is loaded.
func mergeFiles(files []string, aux *Dataset) (*Dataset, error) {
	ds := make([]*Dataset, 0, len(files)+1)
	for _, f := range files {
		d, err := OpenDataset(f)
		if err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	ds = append(ds, aux)
	o, err := Merge(ds...)
	if err != nil {
		if mErr, ok := err.(*MergeConflictError); ok {
			mErr.Files = files
		}
		return nil, err
	}
	return o, nil
}

// mergePeriod consolidates the staging files matching pattern into
// the single file final. It is an error for no staging files to match.
// If there is exactly one staging file and aux is nil, it is renamed. Otherwise the staging files and aux are merged,
// written to final, and the staging files are removed.
func mergePeriod(pattern, final string, aux *Dataset, log logrus.FieldLogger) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("geodata: finding staging files: %w", err)
	}
	sort.Strings(files)
	log = log.WithField("file", final)
	switch {
	case len(files) == 0:
		return fmt.Errorf("geodata: no data for %s: no provider produced a staging file", filepath.Base(final))
	case len(files) == 1 && aux == nil:
		if err := os.Rename(files[0], final); err != nil {
			return fmt.Errorf("geodata: moving staging file: %w", err)
		}
		log.Debug("moved staging file")
		return nil
	}

	d, err := mergeFiles(files, aux)
	if err != nil {
		return err
	}
	tmp := final + ".tmp"
	if err := d.WriteFile(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("geodata: moving merged file: %w", err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("geodata: removing staging file: %w", err)
		}
	}
	log.WithField("inputs", len(files)).Debug("merged staging files")
	return nil
}
