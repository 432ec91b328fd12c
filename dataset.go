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
	"io"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// TimeUnits are the units of the time coordinate.
const TimeUnits = "hours since 1970-01-01 00:00:00"

// Variable is a gridded data variable.
type Variable struct {
	Dims        []string           // netcdf dimensions for this variable
	Description string             // variable description
	Units       string             // variable units
	Data        *sparse.DenseArray // variable data
}

// Dataset holds a set of variables that share a set of coordinates.
// Each coordinate is one-dimensional and is named after the dimension
// it describes, e.g., "x", "y", or "time".
type Dataset struct {
	// Coords are the coordinate values, keyed by dimension name.
	Coords map[string][]float64

	// Data are the variables, keyed by variable name.
	Data map[string]Variable

	// Attrs are global attributes.
	Attrs map[string]string
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Coords: make(map[string][]float64),
		Data:   make(map[string]Variable),
		Attrs:  make(map[string]string),
	}
}

// SetCoord sets the values of coordinate dim.
func (d *Dataset) SetCoord(dim string, values []float64) {
	if d.Coords == nil {
		d.Coords = make(map[string][]float64)
	}
	d.Coords[dim] = values
}

// SetTimes sets the time coordinate from the given times.
func (d *Dataset) SetTimes(times []time.Time) {
	v := make([]float64, len(times))
	for i, t := range times {
		v[i] = timeToHours(t)
	}
	d.SetCoord("time", v)
}

// Times returns the time coordinate as times.
func (d *Dataset) Times() []time.Time {
	v := d.Coords["time"]
	o := make([]time.Time, len(v))
	for i, h := range v {
		o[i] = hoursToTime(h)
	}
	return o
}

// AddVariable adds data for a new variable to d.
func (d *Dataset) AddVariable(name string, dims []string, description, units string, data *sparse.DenseArray) {
	if d.Data == nil {
		d.Data = make(map[string]Variable)
	}
	d.Data[name] = Variable{
		Dims:        dims,
		Description: description,
		Units:       units,
		Data:        data,
	}
}

// VariableNames returns the sorted names of the variables in d.
func (d *Dataset) VariableNames() []string {
	names := make([]string, 0, len(d.Data))
	for n := range d.Data {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether d holds no data: either it has no variables
// or one of its coordinates has no values.
func (d *Dataset) Empty() bool {
	if d == nil || len(d.Data) == 0 {
		return true
	}
	for _, c := range d.Coords {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

// check makes sure that every variable dimension has a coordinate
// and that the variable shapes match the coordinate lengths.
func (d *Dataset) check() error {
	for name, c := range d.Coords {
		if len(c) == 0 {
			return fmt.Errorf("coordinate %s has no values", name)
		}
	}
	for name, v := range d.Data {
		if v.Data == nil {
			return fmt.Errorf("variable %s has no data", name)
		}
		if len(v.Dims) != len(v.Data.Shape) {
			return fmt.Errorf("variable %s has %d dimensions but data has %d", name, len(v.Dims), len(v.Data.Shape))
		}
		for i, dim := range v.Dims {
			c, ok := d.Coords[dim]
			if !ok {
				return fmt.Errorf("variable %s: no coordinate for dimension %s", name, dim)
			}
			if len(c) != v.Data.Shape[i] {
				return fmt.Errorf("variable %s: dimension %s has length %d but coordinate has length %d",
					name, dim, v.Data.Shape[i], len(c))
			}
		}
	}
	return nil
}

func sortedKeys(m map[string][]float64) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// Write writes d to netcdf file w.
func (d *Dataset) Write(w *os.File) error {
	if err := d.check(); err != nil {
		return fmt.Errorf("geodata: writing dataset: %v", err)
	}
	dims := sortedKeys(d.Coords)
	lengths := make([]int, len(dims))
	for i, dim := range dims {
		lengths[i] = len(d.Coords[dim])
	}
	h := cdf.NewHeader(dims, lengths)

	// Sort the names so they write in the same order every time.
	attrNames := make([]string, 0, len(d.Attrs))
	for a := range d.Attrs {
		attrNames = append(attrNames, a)
	}
	sort.Strings(attrNames)
	for _, a := range attrNames {
		if v := d.Attrs[a]; v != "" {
			h.AddAttribute("", a, v)
		}
	}

	for _, dim := range dims {
		h.AddVariable(dim, []string{dim}, []float64{0})
		if dim == "time" {
			h.AddAttribute(dim, "units", TimeUnits)
		}
	}
	names := d.VariableNames()
	for _, name := range names {
		dd := d.Data[name]
		h.AddVariable(name, dd.Dims, []float32{0})
		if dd.Description != "" {
			h.AddAttribute(name, "description", dd.Description)
		}
		if dd.Units != "" {
			h.AddAttribute(name, "units", dd.Units)
		}
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	for _, dim := range dims {
		if _, err := f.Writer(dim, nil, nil).Write(d.Coords[dim]); err != nil {
			return fmt.Errorf("geodata: writing coordinate %s to netcdf file: %v", dim, err)
		}
	}
	for _, name := range names {
		if err = writeNCF(f, name, d.Data[name].Data); err != nil {
			return fmt.Errorf("geodata: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	_, err := f.Writer(Var, nil, nil).Write(data32)
	return err
}

// WriteFile writes d to a new file at path.
func (d *Dataset) WriteFile(path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geodata: creating %s: %v", path, err)
	}
	if err := d.Write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// LoadDataset loads a dataset from a netcdf file. One-dimensional
// variables that have the same name as their dimension are loaded
// as coordinates. Scalar variables are ignored.
func LoadDataset(rw cdf.ReaderWriterAt) (*Dataset, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("geodata.LoadDataset: %v", err)
	}
	return DatasetFromFile(f)
}

// DatasetFromFile reads all of the data in f, in the same way
// as LoadDataset.
func DatasetFromFile(f *cdf.File) (*Dataset, error) {
	o := NewDataset()
	for _, a := range f.Header.Attributes("") {
		if s, ok := f.Header.GetAttribute("", a).(string); ok {
			o.Attrs[a] = s
		}
	}
	for _, v := range f.Header.Variables() {
		if len(f.Header.Lengths(v)) == 0 {
			continue // Scalars, e.g. map projection information.
		}
		vals, err := readFloats(f, v)
		if err != nil {
			return nil, fmt.Errorf("geodata.LoadDataset: %v", err)
		}
		dims := f.Header.Dimensions(v)
		if len(dims) == 1 && dims[0] == v {
			o.Coords[v] = vals
			continue
		}
		data := sparse.ZerosDense(f.Header.Lengths(v)...)
		if len(data.Elements) != len(vals) {
			return nil, fmt.Errorf("geodata.LoadDataset: variable %s dims are %d but "+
				"array length is %d", v, len(data.Elements), len(vals))
		}
		copy(data.Elements, vals)
		o.AddVariable(v, dims, stringAttribute(f, v, "description"), stringAttribute(f, v, "units"), data)
	}
	return o, nil
}

// OpenDataset loads the dataset stored at path. The file is closed
// before OpenDataset returns.
func OpenDataset(path string) (*Dataset, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geodata: opening dataset: %v", err)
	}
	defer r.Close()
	d, err := LoadDataset(r)
	if err != nil {
		return nil, fmt.Errorf("%v (file %s)", err, path)
	}
	return d, nil
}

func stringAttribute(f *cdf.File, v, a string) string {
	s, _ := f.Header.GetAttribute(v, a).(string)
	return s
}

// readFloats reads the entire contents of variable v and converts
// them to float64.
func readFloats(f *cdf.File, v string) ([]float64, error) {
	dims := f.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", v)
	}
	n := 1
	for _, l := range dims {
		n *= l
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading variable %s: %v", v, err)
	}
	o := make([]float64, n)
	switch b := buf.(type) {
	case []float64:
		copy(o, b)
	case []float32:
		for i, val := range b {
			o[i] = float64(val)
		}
	case []int32:
		for i, val := range b {
			o[i] = float64(val)
		}
	case []int16:
		for i, val := range b {
			o[i] = float64(val)
		}
	case []uint8:
		for i, val := range b {
			o[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("variable %s has unsupported type %T", v, buf)
	}
	return o, nil
}

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func timeToHours(t time.Time) float64 {
	return t.Sub(epoch).Hours()
}

func hoursToTime(h float64) time.Time {
	return epoch.Add(time.Duration(h * float64(time.Hour))).Round(time.Second).UTC()
}
