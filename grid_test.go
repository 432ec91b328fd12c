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
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

func TestNormalizeLatDirection(t *testing.T) {
	log := logrus.StandardLogger()
	tests := []struct {
		southToNorth bool
		in, want     Range
	}{
		{southToNorth: false, in: Range{Start: 70, Stop: 40}, want: Range{Start: 70, Stop: 40}},
		{southToNorth: false, in: Range{Start: 40, Stop: 70}, want: Range{Start: 70, Stop: 40}},
		{southToNorth: true, in: Range{Start: 40, Stop: 70}, want: Range{Start: 40, Stop: 70}},
		{southToNorth: true, in: Range{Start: 70, Stop: 40}, want: Range{Start: 40, Stop: 70}},
	}
	for _, test := range tests {
		if have := normalizeLatDirection(test.southToNorth, test.in, log); have != test.want {
			t.Errorf("southToNorth=%v, %v: have %v, want %v", test.southToNorth, test.in, have, test.want)
		}
	}
}

func TestGrid_Bounds(t *testing.T) {
	g, err := NewGrid([]float64{0, 1, 2}, []float64{10, 9.5})
	if err != nil {
		t.Fatal(err)
	}
	want := &geom.Bounds{
		Min: geom.Point{X: -0.5, Y: 9.25},
		Max: geom.Point{X: 2.5, Y: 10.25},
	}
	if have := g.Bounds(); *have != *want {
		t.Errorf("have %v, want %v", have, want)
	}
	if _, err := NewGrid(nil, []float64{1}); err == nil {
		t.Error("empty grid should cause an error")
	}
}

func TestRange_Indices(t *testing.T) {
	r := Range{Start: 3, Stop: 1}
	have := r.Indices([]float64{0, 1, 2, 3, 4})
	if len(have) != 3 || have[0] != 1 || have[2] != 3 {
		t.Errorf("have %v", have)
	}
}
