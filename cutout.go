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

// Package geodata prepares cutouts: archives of gridded, time-indexed
// geophysical data for a region and range of months. Data for each
// month is retrieved from one or more providers, merged, and stored
// in its own netcdf file.
package geodata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

const (
	metaFileName     = "meta.nc"
	manifestFileName = "cutout.toml"
)

// Cutout is an archive of gridded data for a region and range of
// months. Each month of data is stored in its own file in Dir.
type Cutout struct {
	// Name identifies the cutout.
	Name string

	// Dir is the archive directory. It is removed and recreated
	// each time the cutout is prepared.
	Dir string

	// Series are the groups of variables to include in the cutout.
	Series []*Series

	// Meta describes the coordinates of the cutout.
	Meta *Meta

	// NumWorkers is the number of tasks to run at once.
	// If it is <= 0, all processors are used.
	NumWorkers int

	// Elevation, if not nil, is used to add a "height" variable
	// to every file in the cutout.
	Elevation *ElevationResampler

	Log logrus.FieldLogger
}

// manifest records the state of a cutout archive.
type manifest struct {
	Name       string
	Prepared   bool
	PreparedAt time.Time
	Series     []string
	Periods    []string
}

// NewCutout returns a new cutout. It does not touch the filesystem.
func NewCutout(name, dir string, meta *Meta, series ...*Series) (*Cutout, error) {
	if name == "" {
		return nil, fmt.Errorf("geodata: cutout name must be specified")
	}
	if dir == "" {
		return nil, fmt.Errorf("geodata: directory for cutout %s must be specified", name)
	}
	if meta == nil || meta.Dataset == nil || meta.Grid == nil || len(meta.Periods) == 0 {
		return nil, fmt.Errorf("geodata: metadata for cutout %s is missing or empty", name)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("geodata: cutout %s has no data series", name)
	}
	names := make(map[string]struct{})
	for _, s := range series {
		if s == nil {
			return nil, fmt.Errorf("geodata: cutout %s has a nil data series", name)
		}
		if _, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("geodata: cutout %s has more than one data series named %s", name, s.Name)
		}
		names[s.Name] = struct{}{}
	}
	return &Cutout{
		Name:   name,
		Dir:    dir,
		Series: series,
		Meta:   meta,
		Log:    logrus.StandardLogger(),
	}, nil
}

func (c *Cutout) log() logrus.FieldLogger {
	var l logrus.FieldLogger = logrus.StandardLogger()
	if c.Log != nil {
		l = c.Log
	}
	return l.WithField("cutout", c.Name)
}

// DatasetPath returns the path of the archive file for period p.
func (c *Cutout) DatasetPath(p Period) string {
	return filepath.Join(c.Dir, p.String()+".nc")
}

// MetaPath returns the path of the file describing the
// coordinates of the cutout.
func (c *Cutout) MetaPath() string {
	return filepath.Join(c.Dir, metaFileName)
}

// StagingPattern returns a glob pattern that matches all staging
// files for period p.
func (c *Cutout) StagingPattern(p Period) string {
	return filepath.Join(c.Dir, "staging_"+p.String()+"_task*.nc")
}

func (c *Cutout) stagingPath(p Period, task int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("staging_%s_task%d.nc", p, task))
}

func (c *Cutout) manifestPath() string {
	return filepath.Join(c.Dir, manifestFileName)
}

// Prepared reports whether the cutout archive has been completely
// prepared.
func (c *Cutout) Prepared() (bool, error) {
	var m manifest
	if _, err := toml.DecodeFile(c.manifestPath(), &m); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("geodata: reading cutout manifest: %w", err)
	}
	return m.Prepared, nil
}

func (c *Cutout) writeManifest() error {
	m := manifest{
		Name:       c.Name,
		Prepared:   true,
		PreparedAt: time.Now().UTC(),
	}
	for _, s := range c.Series {
		m.Series = append(m.Series, s.Name)
	}
	for _, p := range c.Meta.Periods {
		m.Periods = append(m.Periods, p.String())
	}
	tmp := c.manifestPath() + ".tmp"
	w, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("geodata: writing cutout manifest: %w", err)
	}
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		w.Close()
		return fmt.Errorf("geodata: writing cutout manifest: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("geodata: writing cutout manifest: %w", err)
	}
	return os.Rename(tmp, c.manifestPath())
}

// seriesParams returns the parameters for series s, including
// the attributes of the cutout metadata.
func (c *Cutout) seriesParams(s *Series) Params {
	p := s.Params.Copy()
	attrs := make(map[string]string, len(c.Meta.Dataset.Attrs))
	for k, v := range c.Meta.Dataset.Attrs {
		attrs[k] = v
	}
	p["meta_attrs"] = attrs
	return p
}

// Prepare retrieves the data for every series and period in the cutout
// and stores it in the archive directory, replacing any existing
// contents of the directory. If the cutout has already been prepared
// and overwrite is false, an *AlreadyPreparedError is returned and
// nothing is changed. If any step fails, the archive directory is
// removed and the error is returned.
func (c *Cutout) Prepare(ctx context.Context, overwrite bool) error {
	log := c.log()
	if !overwrite {
		prepared, err := c.Prepared()
		if err != nil {
			return err
		}
		if prepared {
			return &AlreadyPreparedError{Name: c.Name, Dir: c.Dir}
		}
	}
	log.Infof("starting preparation of cutout '%s'", c.Name)

	var aux *Dataset
	if c.Elevation != nil {
		log.Info("interpolating elevation to the cutout grid")
		var err error
		if aux, err = c.Elevation.Height(ctx, c.Meta.Grid); err != nil {
			return err
		}
	}

	if _, err := os.Stat(c.Dir); err == nil {
		log.WithField("dir", c.Dir).Debug("deleting existing cutout directory")
		if err := os.RemoveAll(c.Dir); err != nil {
			return fmt.Errorf("geodata: removing cutout directory: %w", err)
		}
	}
	if err := os.MkdirAll(c.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("geodata: creating cutout directory: %w", err)
	}

	if err := c.prepare(ctx, aux, log); err != nil {
		log.Infof("preparation of cutout '%s' has been interrupted by an error; "+
			"purging the incomplete cutout directory", c.Name)
		if rmErr := os.RemoveAll(c.Dir); rmErr != nil {
			log.WithError(rmErr).Error("purging cutout directory")
		}
		return err
	}
	log.Infof("cutout '%s' has been successfully prepared", c.Name)
	return nil
}

func (c *Cutout) prepare(ctx context.Context, aux *Dataset, log logrus.FieldLogger) error {
	meta, err := Merge(c.Meta.Dataset, aux)
	if err != nil {
		return err
	}
	if err := meta.WriteFile(c.MetaPath()); err != nil {
		return err
	}

	var tasks []*Task
	for _, s := range c.Series {
		ts, err := s.Provider.Tasks(c.Meta.Grid, c.Meta.Periods, c.seriesParams(s))
		if err != nil {
			return fmt.Errorf("geodata: creating tasks for series %s: %w", s.Name, err)
		}
		for _, t := range ts {
			i := len(tasks)
			dest := make(map[Period]string, len(c.Meta.Periods))
			for _, p := range c.Meta.Periods {
				dest[p] = c.stagingPath(p, i)
			}
			tasks = append(tasks, t.WithDestinations(dest))
		}
	}

	pool := &Pool{Workers: c.NumWorkers, Log: log}
	err = pool.RunAll(ctx, tasks, func(ctx context.Context, t *Task) error {
		_, err := Execute(ctx, t, true, log)
		return err
	})
	if err != nil {
		return err
	}

	log.Info("merging variables into monthly files")
	for _, p := range c.Meta.Periods {
		if err := mergePeriod(c.StagingPattern(p), c.DatasetPath(p), aux, log); err != nil {
			return err
		}
	}
	return c.writeManifest()
}

// ProduceSinglePeriod retrieves the data for one series and period and
// returns it without writing anything to the archive directory.
func (c *Cutout) ProduceSinglePeriod(ctx context.Context, period Period, seriesName string) (*Dataset, error) {
	var s *Series
	for _, ss := range c.Series {
		if ss.Name == seriesName {
			s = ss
			break
		}
	}
	if s == nil {
		return nil, fmt.Errorf("geodata: cutout %s has no data series named %s", c.Name, seriesName)
	}
	tasks, err := s.Provider.Tasks(c.Meta.Grid, []Period{period}, c.seriesParams(s))
	if err != nil {
		return nil, fmt.Errorf("geodata: creating tasks for series %s: %w", s.Name, err)
	}
	if len(tasks) != 1 {
		return nil, &InvariantViolationError{Provider: s.Provider.Name(),
			Msg: fmt.Sprintf("returned %d tasks for period %s; expected 1", len(tasks), period)}
	}
	partials, err := Execute(ctx, tasks[0], false, c.log())
	if err != nil {
		return nil, err
	}
	if len(partials) != 1 {
		return nil, &InvariantViolationError{Provider: s.Provider.Name(),
			Msg: fmt.Sprintf("returned %d results for period %s; expected 1", len(partials), period)}
	}
	if p := partials[0]; p == nil || p.Period != period {
		return nil, &InvariantViolationError{Provider: s.Provider.Name(),
			Msg: fmt.Sprintf("returned a result for the wrong period; expected %s", period)}
	}
	return partials[0].Data, nil
}
