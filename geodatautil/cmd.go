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

// Package geodatautil implements the geodata command-line interface.
package geodatautil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/geodata"
	"github.com/spatialmodel/geodata/cloud"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// option is a configuration option that can be set with a
// command-line flag, an environment variable, or in a configuration file.
type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	cutoutFlags := []*pflag.FlagSet{prepareCmd.Flags(), produceCmd.Flags(), metaCmd.Flags()}

	// Options are the configuration options available to geodata.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level specifies the level of detail of log messages. It can
              be one of debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Cutout.Name",
			usage: `
              Cutout.Name is the name of the cutout. The cutout is stored
              in a directory of the same name within Cutout.Dir.`,
			shorthand:  "n",
			defaultVal: "",
			flagsets:   append(cutoutFlags, publishCmd.Flags()),
		},
		{
			name: "Cutout.Dir",
			usage: `
              Cutout.Dir is the directory where cutouts are stored. It can contain
              environment variables.`,
			defaultVal: "${PWD}/cutouts",
			flagsets:   append(cutoutFlags, publishCmd.Flags()),
		},
		{
			name: "Cutout.X",
			usage: `
              Cutout.X is the range of x coordinates (longitudes) to include in
              the cutout, in the format [start, stop].`,
			defaultVal: "[-12, 35]",
			flagsets:   cutoutFlags,
		},
		{
			name: "Cutout.Y",
			usage: `
              Cutout.Y is the range of y coordinates (latitudes) to include in
              the cutout, in the format [start, stop]. If the direction of the
              range doesn't match the direction of the data, it is reversed.`,
			defaultVal: "[72, 33]",
			flagsets:   cutoutFlags,
		},
		{
			name: "Cutout.Years",
			usage: `
              Cutout.Years is the inclusive range of years to include in the
              cutout, in the format [start, stop].`,
			defaultVal: "[2011, 2011]",
			flagsets:   cutoutFlags,
		},
		{
			name: "Cutout.Months",
			usage: `
              Cutout.Months is the inclusive range of months to include in each
              year, in the format [start, stop]. If empty, all months are included.`,
			defaultVal: "",
			flagsets:   cutoutFlags,
		},
		{
			name: "Cutout.NumWorkers",
			usage: `
              Cutout.NumWorkers is the number of tasks to run at the same time.
              If it is 0, the number of processors is used.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{prepareCmd.Flags()},
		},
		{
			name: "Cutout.Overwrite",
			usage: `
              Cutout.Overwrite specifies whether to prepare the cutout again
              if it has already been prepared.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{prepareCmd.Flags()},
		},
		{
			name: "Cutout.Series",
			usage: `
              Cutout.Series holds the data series to include in the cutout, as
              a map from series name to provider configuration. For example:
              {"influx": {"provider": "ncmonthly", "file_template": "/data/era5_[DATE].nc",
              "variables": ["influx_toa", "influx_direct"], "granularity": "subdaily"}}`,
			defaultVal: "{}",
			flagsets:   cutoutFlags,
		},
		{
			name: "Meta.Series",
			usage: `
              Meta.Series is the name of the series used to find the coordinates
              and time steps of the cutout. If empty, the first series in
              alphabetical order is used.`,
			defaultVal: "",
			flagsets:   cutoutFlags,
		},
		{
			name: "Elevation.Enabled",
			usage: `
              Elevation.Enabled specifies whether to add a "height" variable
              with surface elevation to every file in the cutout.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{prepareCmd.Flags()},
		},
		{
			name: "Elevation.ReferenceFile",
			usage: `
              Elevation.ReferenceFile is the netcdf file holding elevation data,
              for example from GEBCO. It can be a local path, a URL, or a blob
              storage location (gs://, s3://, file://).`,
			defaultVal: "${HOME}/data/GEBCO_2014_2D.nc",
			flagsets:   []*pflag.FlagSet{prepareCmd.Flags()},
		},
		{
			name: "Elevation.Command",
			usage: `
              Elevation.Command is the program used to resample elevation data.`,
			defaultVal: geodata.DefaultResampleCommand,
			flagsets:   []*pflag.FlagSet{prepareCmd.Flags()},
		},
		{
			name: "Produce.Period",
			usage: `
              Produce.Period is the month to produce data for, in the format YYYY-MM.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{produceCmd.Flags()},
		},
		{
			name: "Produce.Series",
			usage: `
              Produce.Series is the name of the series to produce data for.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{produceCmd.Flags()},
		},
		{
			name: "Produce.Output",
			usage: `
              Produce.Output is the netcdf file to write the produced data to.`,
			defaultVal: "",
			shorthand:  "o",
			flagsets:   []*pflag.FlagSet{produceCmd.Flags()},
		},
		{
			name: "Publish.URL",
			usage: `
              Publish.URL is the blob storage location to copy prepared cutouts to,
              in the format provider://bucket/prefix, where provider is gs, s3, or file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{publishCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GEODATA")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(prepareCmd)
	Root.AddCommand(produceCmd)
	Root.AddCommand(metaCmd)
	Root.AddCommand(publishCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geodata: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("geodata: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "geodata",
	Short: "Prepare gridded geophysical data for analysis.",
	Long: `geodata prepares cutouts: archives of gridded, time-indexed weather
and satellite data for a region and range of months, with one file per month.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GEODATA_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of geodata.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("geodata v%s\n", geodata.Version)
	},
	DisableAutoGenTag: true,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare a cutout",
	Long: `prepare retrieves the data for every series and month of a cutout
and stores it in the cutout directory. If the cutout has already been prepared,
it is only prepared again if --Cutout.Overwrite is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := BuildCutout(ctx, Cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		return c.Prepare(ctx, Cfg.GetBool("Cutout.Overwrite"))
	},
	DisableAutoGenTag: true,
}

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Produce data for a single month",
	Long: `produce retrieves the data for a single series and month and writes
it to the file specified by --Produce.Output. The cutout directory is not changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		period, err := geodata.ParsePeriod(Cfg.GetString("Produce.Period"))
		if err != nil {
			return err
		}
		output := os.ExpandEnv(Cfg.GetString("Produce.Output"))
		if output == "" {
			return fmt.Errorf("geodata: an output file must be specified with --Produce.Output")
		}
		c, err := BuildCutout(ctx, Cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		d, err := c.ProduceSinglePeriod(ctx, period, Cfg.GetString("Produce.Series"))
		if err != nil {
			return err
		}
		return d.WriteFile(output)
	},
	DisableAutoGenTag: true,
}

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Describe a cutout",
	Long: `meta finds the coordinates and time steps that a cutout would
have without preparing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := BuildCutout(cmd.Context(), Cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		printMeta(cmd, c)
		return nil
	},
	DisableAutoGenTag: true,
}

func printMeta(cmd *cobra.Command, c *geodata.Cutout) {
	ny, nx := c.Meta.Grid.Shape()
	b := c.Meta.Grid.Bounds()
	times := c.Meta.Dataset.Times()
	cmd.Printf("cutout:  %s (%s)\n", c.Name, c.Dir)
	cmd.Printf("grid:    %d x %d cells from (%g, %g) to (%g, %g)\n", nx, ny, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	cmd.Printf("periods: %d from %s to %s\n", len(c.Meta.Periods), c.Meta.Periods[0], c.Meta.Periods[len(c.Meta.Periods)-1])
	if len(times) > 0 {
		cmd.Printf("times:   %d from %s to %s\n", len(times), times[0].Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339))
	}
	for _, s := range c.Series {
		cmd.Printf("series:  %s (%s)\n", s.Name, s.Provider.Name())
	}
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Copy a prepared cutout to blob storage",
	Long: `publish copies the files of a prepared cutout to the blob storage
location specified by --Publish.URL, in a directory named after the cutout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Publish(cmd.Context(), Cfg, logrus.StandardLogger())
	},
	DisableAutoGenTag: true,
}

// Publish copies the prepared cutout specified in cfg to blob storage.
func Publish(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) error {
	name := cfg.GetString("Cutout.Name")
	if name == "" {
		return fmt.Errorf("geodata: the cutout name must be specified with --Cutout.Name")
	}
	dest := os.ExpandEnv(cfg.GetString("Publish.URL"))
	if !cloud.IsBlob(dest) {
		return fmt.Errorf("geodata: invalid publish location '%s'", dest)
	}
	c := &geodata.Cutout{Name: name, Dir: cutoutDir(cfg, name)}
	prepared, err := c.Prepared()
	if err != nil {
		return err
	}
	if !prepared {
		return fmt.Errorf("geodata: cutout '%s' in %s has not been prepared", name, c.Dir)
	}
	n, err := cloud.UploadDir(ctx, c.Dir, dest+"/"+name, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"cutout": name, "files": n, "url": dest}).Info("published cutout")
	return nil
}

func cutoutDir(cfg *viper.Viper, name string) string {
	return filepath.Join(os.ExpandEnv(cfg.GetString("Cutout.Dir")), name)
}
