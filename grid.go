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
	"math"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Range is an inclusive range of coordinate values. Stop may be less
// than Start, in which case the range runs in descending order.
type Range struct {
	Start, Stop float64
}

// Contains reports whether v lies within r, irrespective of direction.
func (r Range) Contains(v float64) bool {
	lo, hi := math.Min(r.Start, r.Stop), math.Max(r.Start, r.Stop)
	return v >= lo && v <= hi
}

// Indices returns the indices of the values in coords that fall within r.
func (r Range) Indices(coords []float64) []int {
	var o []int
	for i, c := range coords {
		if r.Contains(c) {
			o = append(o, i)
		}
	}
	return o
}

// normalizeLatDirection flips the latitude range y when its direction
// does not match the native direction of the provider's data.
// A warning is logged when that happens.
func normalizeLatDirection(southToNorth bool, y Range, log logrus.FieldLogger) Range {
	if !southToNorth && y.Stop > y.Start {
		log.Warnf("y ranges are expected from north to south, i.e. [70, 40] for europe; using [%g, %g]", y.Stop, y.Start)
		return Range{Start: y.Stop, Stop: y.Start}
	}
	if southToNorth && y.Stop < y.Start {
		log.Warnf("y ranges are expected from south to north, i.e. [40, 70] for europe; using [%g, %g]", y.Stop, y.Start)
		return Range{Start: y.Stop, Stop: y.Start}
	}
	return y
}

// Grid holds the cell-center coordinates of a regular grid.
type Grid struct {
	Xs, Ys []float64
}

// NewGrid returns a grid with the given cell centers.
func NewGrid(xs, ys []float64) (*Grid, error) {
	if len(xs) == 0 || len(ys) == 0 {
		return nil, fmt.Errorf("geodata: grid needs at least one x and one y coordinate (have %d and %d)", len(xs), len(ys))
	}
	return &Grid{Xs: xs, Ys: ys}, nil
}

// Bounds returns the extent of the grid cell edges, assuming evenly
// spaced cell centers. Single-cell dimensions have zero width.
func (g *Grid) Bounds() *geom.Bounds {
	minx, maxx := floats.Min(g.Xs), floats.Max(g.Xs)
	miny, maxy := floats.Min(g.Ys), floats.Max(g.Ys)
	var dx, dy float64
	if len(g.Xs) > 1 {
		dx = (maxx - minx) / float64(len(g.Xs)-1)
	}
	if len(g.Ys) > 1 {
		dy = (maxy - miny) / float64(len(g.Ys)-1)
	}
	return &geom.Bounds{
		Min: geom.Point{X: minx - dx/2, Y: miny - dy/2},
		Max: geom.Point{X: maxx + dx/2, Y: maxy + dy/2},
	}
}

// Shape returns the number of cells in the y and x directions.
func (g *Grid) Shape() (ny, nx int) { return len(g.Ys), len(g.Xs) }
