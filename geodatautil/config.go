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

package geodatautil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/geodata"
	"github.com/spatialmodel/geodata/cloud"
	"github.com/spatialmodel/geodata/providers/ncmonthly"
	"github.com/spf13/cast"
)

// seriesConfig holds the configuration of a single data series.
type seriesConfig struct {
	Provider     string                 `json:"provider"`
	FileTemplate string                 `json:"file_template"`
	DateFormat   string                 `json:"date_format"`
	Variables    []string               `json:"variables"`
	Granularity  string                 `json:"granularity"`
	SouthToNorth bool                   `json:"south_to_north"`
	Params       map[string]interface{} `json:"params"`
}

// BuildCutout creates a cutout from the configuration information in cfg.
// The metadata of the cutout is found by probing the provider of the
// meta series. The cutout is not prepared.
func BuildCutout(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) (*geodata.Cutout, error) {
	name := cfg.GetString("Cutout.Name")
	if name == "" {
		return nil, fmt.Errorf("geodata: the cutout name must be specified with --Cutout.Name")
	}
	x, err := getRange("Cutout.X", cfg)
	if err != nil {
		return nil, err
	}
	y, err := getRange("Cutout.Y", cfg)
	if err != nil {
		return nil, err
	}
	yearPair, err := getIntPair("Cutout.Years", cfg)
	if err != nil {
		return nil, err
	}
	years := geodata.YearRange{Start: yearPair[0], Stop: yearPair[1]}
	var months *geodata.MonthRange
	if m := cfg.Get("Cutout.Months"); m != nil && m != "" {
		mp, err := getIntPair("Cutout.Months", cfg)
		if err != nil {
			return nil, err
		}
		months = &geodata.MonthRange{Start: time.Month(mp[0]), Stop: time.Month(mp[1])}
	}

	configs, err := getSeriesConfig("Cutout.Series", cfg)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("geodata: no data series specified in Cutout.Series")
	}
	names := make([]string, 0, len(configs))
	for n := range configs {
		names = append(names, n)
	}
	sort.Strings(names)

	series := make([]*geodata.Series, len(names))
	for i, n := range names {
		p, err := newProvider(n, configs[n])
		if err != nil {
			return nil, err
		}
		series[i], err = geodata.NewSeries(n, p, configs[n].Params)
		if err != nil {
			return nil, err
		}
	}

	metaName := cfg.GetString("Meta.Series")
	if metaName == "" {
		metaName = names[0]
	}
	var metaSeries *geodata.Series
	for _, s := range series {
		if s.Name == metaName {
			metaSeries = s
		}
	}
	if metaSeries == nil {
		return nil, fmt.Errorf("geodata: meta series '%s' is not in Cutout.Series", metaName)
	}
	mp, ok := metaSeries.Provider.(geodata.MetaProvider)
	if !ok {
		return nil, fmt.Errorf("geodata: provider %s of series %s can't describe cutout metadata",
			metaSeries.Provider.Name(), metaName)
	}
	meta, err := geodata.ResolveMeta(ctx, mp, x, y, years, months, metaSeries.Params, log)
	if err != nil {
		return nil, err
	}

	c, err := geodata.NewCutout(name, cutoutDir(cfg, name), meta, series...)
	if err != nil {
		return nil, err
	}
	c.NumWorkers = cfg.GetInt("Cutout.NumWorkers")
	c.Log = log

	if cfg.GetBool("Elevation.Enabled") {
		ref, err := cloud.MaybeDownload(ctx, os.ExpandEnv(cfg.GetString("Elevation.ReferenceFile")), log)
		if err != nil {
			return nil, err
		}
		c.Elevation = &geodata.ElevationResampler{
			ReferenceFile: ref,
			Command:       os.ExpandEnv(cfg.GetString("Elevation.Command")),
			Log:           log,
		}
	}
	return c, nil
}

// newProvider returns the provider specified by c.
func newProvider(series string, c seriesConfig) (geodata.Provider, error) {
	switch c.Provider {
	case "ncmonthly", "":
		g, err := geodata.ParseGranularity(c.Granularity)
		if err != nil {
			return nil, fmt.Errorf("geodata: series %s: %v", series, err)
		}
		return &ncmonthly.NCMonthly{
			FileTemplate: os.ExpandEnv(c.FileTemplate),
			DateFormat:   c.DateFormat,
			Variables:    c.Variables,
			Resolution:   g,
			SouthToNorth: c.SouthToNorth,
		}, nil
	default:
		return nil, fmt.Errorf("geodata: series %s: unknown provider '%s'", series, c.Provider)
	}
}

// getSeriesConfig returns the series configuration from a viper
// configuration, accounting for the fact that it might be a json
// object if it was set from a command line argument.
func getSeriesConfig(varName string, cfg *viper.Viper) (map[string]seriesConfig, error) {
	var b []byte
	switch v := cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		b = []byte(v)
	case map[string]interface{}:
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
		}
	default:
		return nil, fmt.Errorf("geodata: invalid type for config variable %s: %#v", varName, v)
	}
	o := make(map[string]seriesConfig)
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
	}
	return o, nil
}

// getRange returns a coordinate range from a viper configuration,
// where it can either be a list or a json array.
func getRange(varName string, cfg *viper.Viper) (geodata.Range, error) {
	v, err := getPair(varName, cfg)
	if err != nil {
		return geodata.Range{}, err
	}
	start, err := cast.ToFloat64E(v[0])
	if err != nil {
		return geodata.Range{}, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
	}
	stop, err := cast.ToFloat64E(v[1])
	if err != nil {
		return geodata.Range{}, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
	}
	return geodata.Range{Start: start, Stop: stop}, nil
}

func getIntPair(varName string, cfg *viper.Viper) ([2]int, error) {
	v, err := getPair(varName, cfg)
	if err != nil {
		return [2]int{}, err
	}
	var o [2]int
	for i, val := range v {
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return o, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
		}
		if f != float64(int(f)) {
			return o, fmt.Errorf("geodata: parsing config variable %s: %g is not a whole number", varName, f)
		}
		o[i] = int(f)
	}
	return o, nil
}

func getPair(varName string, cfg *viper.Viper) ([]interface{}, error) {
	var v []interface{}
	switch i := cfg.Get(varName).(type) {
	case string:
		if err := json.Unmarshal([]byte(i), &v); err != nil {
			return nil, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
		}
	default:
		var err error
		v, err = cast.ToSliceE(i)
		if err != nil {
			return nil, fmt.Errorf("geodata: parsing config variable %s: %v", varName, err)
		}
	}
	if len(v) != 2 {
		return nil, fmt.Errorf("geodata: config variable %s must have 2 values but has %d", varName, len(v))
	}
	return v, nil
}
