// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package app

import (
	"os"
	"runtime"
	"strings"

	"github.com/danjacques/gorope/replay/archive"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

const (
	// envPrefix prefixes the environment variables that supply flag defaults.
	envPrefix = "GOROPE_"

	// defaultEnvFile is loaded, if present, when --env-file is not set.
	defaultEnvFile = ".env"
)

// Config holds the command-line configuration.
type Config struct {
	Netstream bool
	Pretty    bool
	Strict    bool

	ArchiveDir  string
	Compression archive.CompressionFlag

	ClassMap string
	Jobs     int

	MetricsFile string
	LogLevel    zapcore.Level
	EnvFile     string
}

// AddFlags registers c's flags on fs.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	c.Jobs = runtime.NumCPU()
	c.Compression = archive.CompressionFlag(archive.CompressionSnappy)

	fs.BoolVar(&c.Netstream, "netstream", false,
		"Decode each replay's netstream frames, not just its header.")
	fs.BoolVar(&c.Pretty, "pretty", false,
		"Indent JSON output.")
	fs.BoolVar(&c.Strict, "strict", false,
		"Reject header properties whose declared size disagrees with their payload.")
	fs.StringVar(&c.ArchiveDir, "archive", "",
		"If set, write each decoded replay to an archive under this directory.")
	fs.Var(&c.Compression, "compression",
		"Archive frame compression. One of: "+archive.CompressionFlagValues()+".")
	fs.StringVar(&c.ClassMap, "class-map", "",
		"Path to a TOML file of archetype to class overrides.")
	fs.IntVarP(&c.Jobs, "jobs", "j", c.Jobs,
		"Number of replays to decode in parallel.")
	fs.StringVar(&c.MetricsFile, "metrics-file", "",
		"If set, write a Prometheus text snapshot of decode metrics to this path.")
	fs.Var((*levelFlag)(&c.LogLevel), "log-level",
		"Log level (debug, info, warn, error).")
	fs.StringVar(&c.EnvFile, "env-file", "",
		"Load flag defaults from this file. Defaults to \""+defaultEnvFile+"\" if it exists.")
}

// Parse parses args into c.
//
// Flags not set on the command line take their value from the environment:
// the flag "metrics-file" is read from GOROPE_METRICS_FILE. The environment
// is first supplemented from the env file, which never overrides variables
// that are already set.
func (c *Config) Parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case c.EnvFile != "":
		if err := godotenv.Load(c.EnvFile); err != nil {
			return errors.Wrapf(err, "loading env file %q", c.EnvFile)
		}
	default:
		if _, err := os.Stat(defaultEnvFile); err == nil {
			if err := godotenv.Load(defaultEnvFile); err != nil {
				return errors.Wrapf(err, "loading env file %q", defaultEnvFile)
			}
		}
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if v, ok := os.LookupEnv(envName(f.Name)); ok && v != "" {
			if setErr := fs.Set(f.Name, v); setErr != nil {
				err = errors.Wrapf(setErr, "invalid %s", envName(f.Name))
			}
		}
	})
	if err != nil {
		return err
	}

	if c.Jobs <= 0 {
		return errors.Errorf("--jobs must be positive, not %d", c.Jobs)
	}
	return nil
}

// envName returns the environment variable that supplies flag's default.
func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.Replace(flag, "-", "_", -1))
}

// levelFlag is a pflag.Value for a zap log level.
type levelFlag zapcore.Level

var _ pflag.Value = (*levelFlag)(nil)

func (lf *levelFlag) String() string { return zapcore.Level(*lf).String() }

// Set implements pflag.Value.
func (lf *levelFlag) Set(v string) error {
	return (*zapcore.Level)(lf).UnmarshalText([]byte(v))
}

// Type implements pflag.Value.
func (lf *levelFlag) Type() string { return "level" }
