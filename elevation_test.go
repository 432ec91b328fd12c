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
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

// writeReference writes an elevation file where each value is
// 10*lat + lon.
func writeReference(t *testing.T) string {
	lon := []float64{0, 1, 2, 3}
	lat := []float64{3, 4, 5, 6}
	d := NewDataset()
	d.SetCoord("lon", lon)
	d.SetCoord("lat", lat)
	band := sparse.ZerosDense(len(lat), len(lon))
	for j, y := range lat {
		for i, x := range lon {
			band.Set(10*y+x, j, i)
		}
	}
	d.AddVariable("Band1", []string{"lat", "lon"}, "", "m", band)
	path := filepath.Join(t.TempDir(), "gebco.nc")
	if err := d.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestElevationResampler_fallback(t *testing.T) {
	e := &ElevationResampler{
		ReferenceFile: writeReference(t),
		Command:       "geodata-resampler-that-does-not-exist",
	}
	grid, err := NewGrid([]float64{1.1, 2, 2.9}, []float64{5.2, 4})
	if err != nil {
		t.Fatal(err)
	}
	d, err := e.Height(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	h := d.Data["height"]
	if !reflect.DeepEqual(h.Dims, []string{"y", "x"}) {
		t.Errorf("dims: %v", h.Dims)
	}
	want := []float64{51, 52, 53, 41, 42, 43}
	if !reflect.DeepEqual(h.Data.Elements, want) {
		t.Errorf("have %v, want %v", h.Data.Elements, want)
	}

	// The second request is served from the cache.
	d2, err := e.Height(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	if d2 != d {
		t.Error("result was not cached")
	}
}

func TestElevationResampler_commandFails(t *testing.T) {
	e := &ElevationResampler{
		ReferenceFile: writeReference(t),
		Command:       "false",
	}
	grid, err := NewGrid([]float64{1, 2}, []float64{5, 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Height(context.Background(), grid); err == nil {
		t.Error("a failing command should cause an error")
	}
}

func TestCutout_Prepare_elevation(t *testing.T) {
	c := testCutout(t, testSeries(t, "influx", &fakeProvider{name: "fake", vars: []string{"influx"}}))
	c.Elevation = &ElevationResampler{
		ReferenceFile: writeReference(t),
		Command:       "geodata-resampler-that-does-not-exist",
	}
	if err := c.Prepare(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	checkFiles(t, c.Dir, []string{"2011-01.nc", "2011-02.nc", "cutout.toml", "meta.nc"})
	for _, path := range []string{c.DatasetPath(jan2011), c.MetaPath()} {
		d, err := OpenDataset(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := d.Data["height"]; !ok {
			t.Errorf("%s has no height variable", path)
		}
	}
}
