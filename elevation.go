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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/geodata/internal/hash"
)

// DefaultResampleCommand is the command used to resample elevation
// data onto a grid. It is looked up in the system path.
const DefaultResampleCommand = "gdalwarp"

// ElevationResampler creates elevation fields for grids by
// area-averaging a reference elevation dataset, such as GEBCO.
type ElevationResampler struct {
	// ReferenceFile is a netcdf file with variable "Band1" on
	// dimensions "lat" and "lon".
	ReferenceFile string

	// Command is the resampling program. If it is empty,
	// DefaultResampleCommand is used. If it can't be found, the
	// reference data is used without area averaging.
	Command string

	Log logrus.FieldLogger

	cacheInit sync.Once
	cache     *requestcache.Cache
}

// Height returns a dataset with variable "height" on dimensions
// "y" and "x" holding the elevation at each cell of grid.
// Results are cached, so the returned dataset should not be modified.
func (e *ElevationResampler) Height(ctx context.Context, grid *Grid) (*Dataset, error) {
	e.cacheInit.Do(func() {
		e.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return e.height(ctx, request.(*Grid))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(10))
	})
	req := e.cache.NewRequest(ctx, grid, hash.Hash(grid, e.ReferenceFile, e.command()))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*Dataset), nil
}

func (e *ElevationResampler) command() string {
	if e.Command == "" {
		return DefaultResampleCommand
	}
	return e.Command
}

func (e *ElevationResampler) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

func (e *ElevationResampler) height(ctx context.Context, grid *Grid) (*Dataset, error) {
	if e.ReferenceFile == "" {
		return nil, fmt.Errorf("geodata: no elevation reference file specified")
	}
	tmpDir, err := os.MkdirTemp("", "geodata_elevation")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, "resampled.nc")
	if err := e.resample(ctx, grid, src); err != nil {
		var execErr *exec.Error
		if !errors.As(err, &execErr) {
			return nil, err
		}
		e.log().WithError(err).Warnf("%s was not found for resampling elevation; "+
			"nearest neighbor interpolation will be used instead", e.command())
		src = e.ReferenceFile
	}

	ref, err := OpenDataset(src)
	if err != nil {
		return nil, err
	}
	return reindexNearest(ref, grid)
}

// resample area-averages the reference file onto grid, writing
// the result to netcdf file dst.
func (e *ElevationResampler) resample(ctx context.Context, grid *Grid, dst string) error {
	ny, nx := grid.Shape()
	b := grid.Bounds()
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	cmd := exec.CommandContext(ctx, e.command(),
		"-of", "netCDF", "-co", "FORMAT=NC",
		"-ts", strconv.Itoa(nx), strconv.Itoa(ny),
		"-te", f(b.Min.X), f(b.Min.Y), f(b.Max.X), f(b.Max.Y),
		"-r", "average",
		e.ReferenceFile, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return err
		}
		return fmt.Errorf("geodata: %s was not able to resample elevation: %v: %s", e.command(), err, stderr.String())
	}
	return nil
}

// reindexNearest picks the "Band1" value from ref that is nearest to
// each cell in grid.
func reindexNearest(ref *Dataset, grid *Grid) (*Dataset, error) {
	lon, lat := ref.Coords["lon"], ref.Coords["lat"]
	band, ok := ref.Data["Band1"]
	if !ok || len(lon) == 0 || len(lat) == 0 {
		return nil, fmt.Errorf("geodata: elevation data must have variable Band1 and coordinates lon and lat")
	}
	var latFirst bool
	switch {
	case len(band.Dims) == 2 && band.Dims[0] == "lat" && band.Dims[1] == "lon":
		latFirst = true
	case len(band.Dims) == 2 && band.Dims[0] == "lon" && band.Dims[1] == "lat":
	default:
		return nil, fmt.Errorf("geodata: elevation variable Band1 has dimensions %v; it should have lat and lon", band.Dims)
	}
	ny, nx := grid.Shape()
	h := sparse.ZerosDense(ny, nx)
	for j, y := range grid.Ys {
		jj := nearest(lat, y)
		for i, x := range grid.Xs {
			ii := nearest(lon, x)
			if latFirst {
				h.Set(band.Data.Get(jj, ii), j, i)
			} else {
				h.Set(band.Data.Get(ii, jj), j, i)
			}
		}
	}
	o := NewDataset()
	o.SetCoord("x", grid.Xs)
	o.SetCoord("y", grid.Ys)
	o.AddVariable("height", []string{"y", "x"}, "Surface elevation", "m", h)
	return o, nil
}

// nearest returns the index of the value in coords closest to v.
func nearest(coords []float64, v float64) int {
	idx, best := 0, math.Inf(1)
	for i, c := range coords {
		if d := math.Abs(c - v); d < best {
			idx, best = i, d
		}
	}
	return idx
}
