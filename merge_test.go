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
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
)

var mergeTimes = []time.Time{time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)}

func TestMerge_union(t *testing.T) {
	a := testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx")
	b := testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "wind")
	b.Attrs["source"] = "b"
	m, err := Merge(a, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := m.VariableNames(), []string{"influx", "wind"}; !reflect.DeepEqual(have, want) {
		t.Errorf("variables: have %v, want %v", have, want)
	}
	if m.Attrs["source"] != "b" {
		t.Errorf("attributes: %v", m.Attrs)
	}
}

func TestMerge_identicalVariable(t *testing.T) {
	a := testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx")
	b := testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx")
	if _, err := Merge(a, b); err != nil {
		t.Errorf("identical variables should merge: %v", err)
	}
}

func TestMerge_conflict(t *testing.T) {
	tests := []struct {
		name string
		b    *Dataset
	}{
		{name: "coordinate values", b: testDataset([]float64{1, 2.5}, []float64{3}, mergeTimes, "wind")},
		{name: "coordinate length", b: testDataset([]float64{1, 2, 3}, []float64{3}, mergeTimes, "wind")},
		{name: "variable values", b: testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "wind", "influx")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx")
			_, err := Merge(a, test.b)
			var mErr *MergeConflictError
			if !errors.As(err, &mErr) {
				t.Fatalf("want MergeConflictError, have %v", err)
			}
		})
	}
}

func writeStaging(t *testing.T, dir string, name string, d *Dataset) string {
	path := filepath.Join(dir, name)
	if err := d.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMergePeriod_rename(t *testing.T) {
	dir := t.TempDir()
	writeStaging(t, dir, "staging_2011-01_task0.nc", testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx"))
	final := filepath.Join(dir, "2011-01.nc")
	if err := mergePeriod(filepath.Join(dir, "staging_2011-01_task*.nc"), final, nil, logrus.StandardLogger()); err != nil {
		t.Fatal(err)
	}
	checkFiles(t, dir, []string{"2011-01.nc"})
}

func TestMergePeriod_none(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "2011-01.nc")
	err := mergePeriod(filepath.Join(dir, "staging_2011-01_task*.nc"), final, nil, logrus.StandardLogger())
	if err == nil {
		t.Fatal("a period without staging files should cause an error")
	}
	checkFiles(t, dir, nil)
}

// Merging the same staging files twice should give the same result.
func TestMergePeriod_idempotent(t *testing.T) {
	var results []*Dataset
	for i := 0; i < 2; i++ {
		dir := t.TempDir()
		writeStaging(t, dir, "staging_2011-01_task0.nc", testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx"))
		writeStaging(t, dir, "staging_2011-01_task1.nc", testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "a", "b"))
		final := filepath.Join(dir, "2011-01.nc")
		if err := mergePeriod(filepath.Join(dir, "staging_2011-01_task*.nc"), final, nil, logrus.StandardLogger()); err != nil {
			t.Fatal(err)
		}
		checkFiles(t, dir, []string{"2011-01.nc"})
		d, err := OpenDataset(final)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, d)
	}
	if !reflect.DeepEqual(results[0], results[1]) {
		t.Errorf("results differ: %v", pretty.Diff(results[0], results[1]))
	}
	if have, want := results[0].VariableNames(), []string{"a", "b", "influx"}; !reflect.DeepEqual(have, want) {
		t.Errorf("variables: have %v, want %v", have, want)
	}
}

func TestMergePeriod_conflict(t *testing.T) {
	dir := t.TempDir()
	writeStaging(t, dir, "staging_2011-01_task0.nc", testDataset([]float64{1, 2}, []float64{3}, mergeTimes, "influx"))
	writeStaging(t, dir, "staging_2011-01_task1.nc", testDataset([]float64{1, 3}, []float64{3}, mergeTimes, "wind"))
	final := filepath.Join(dir, "2011-01.nc")
	err := mergePeriod(filepath.Join(dir, "staging_2011-01_task*.nc"), final, nil, logrus.StandardLogger())
	var mErr *MergeConflictError
	if !errors.As(err, &mErr) {
		t.Fatalf("want MergeConflictError, have %v", err)
	}
	if mErr.Name != "x" || len(mErr.Files) != 2 {
		t.Errorf("error: %+v", mErr)
	}
}

// checkFiles checks that dir contains exactly the given files.
func checkFiles(t *testing.T, dir string, want []string) {
	t.Helper()
	have, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range have {
		have[i] = filepath.Base(h)
	}
	if len(have) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("files in %s: have %v, want %v", dir, have, want)
	}
}
