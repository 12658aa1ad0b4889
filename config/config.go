/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Expose configuration across iorapd: parsed from a TOML configuration file,
// overridden by command line flags, and supplemented by a live property
// store (see properties.go) that mirrors the system-property surface of
// spec.md §6.

package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/internal/flags"
	"github.com/iorap-project/iorapd/internal/logging"
)

// Config is the on-disk shape of iorapd's TOML configuration file.
type Config struct {
	RootDir     string `toml:"-"`
	SocketPath  string `toml:"socket_path"`
	Prefetcherd string `toml:"prefetcherd_path"`

	// MetricsAddress is the TCP address the prometheus HTTP listener binds,
	// serving SPEC_FULL.md's "Metrics" ambient surface. Empty disables it.
	MetricsAddress string `toml:"metrics_address"`

	LogLevel    string `toml:"log_level"`
	LogDir      string `toml:"log_dir"`
	LogToStdout bool   `toml:"log_to_stdout"`

	RotateLogMaxSize    int  `toml:"log_rotate_max_size"`
	RotateLogMaxBackups int  `toml:"log_rotate_max_backups"`
	RotateLogMaxAge     int  `toml:"log_rotate_max_age"`
	RotateLogLocalTime  bool `toml:"log_rotate_local_time"`
	RotateLogCompress   bool `toml:"log_rotate_compress"`

	// Properties seeds the live PropertyStore (see properties.go); any of
	// the `iorapd.*` keys from spec.md §6 may be set here and are
	// subsequently refreshable without a restart.
	Properties map[string]string `toml:"properties"`
}

// LoadConfig reads a TOML configuration file. A missing file is not an
// error: iorapd runs with compiled-in defaults.
func LoadConfig(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	tree, err := toml.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "load config file %q", path)
	}

	if err := tree.Unmarshal(cfg); err != nil {
		return errors.Wrapf(err, "unmarshal config file %q", path)
	}

	return nil
}

// ParseParameters overlays command line flags onto a loaded Config. Flags
// take priority over file content, matching the teacher's layered
// merge-then-validate idiom.
func ParseParameters(args *flags.Args, cfg *Config) error {
	if args.RootDir != "" {
		cfg.RootDir = args.RootDir
	}
	if args.SocketPath != "" {
		cfg.SocketPath = args.SocketPath
	}
	if args.PrefetcherPath != "" {
		cfg.Prefetcherd = args.PrefetcherPath
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}
	if args.LogToStdoutCount > 0 {
		cfg.LogToStdout = args.LogToStdout
	}
	return nil
}

// FillupWithDefaults completes a Config with the defaults named in spec.md
// §6; callers should call this after ParseParameters.
func (c *Config) FillupWithDefaults() error {
	if c.RootDir == "" {
		c.RootDir = constant.DefaultRootDir
	}
	if c.SocketPath == "" {
		c.SocketPath = constant.DefaultAddress
	}
	if c.MetricsAddress == "" {
		c.MetricsAddress = constant.DefaultMetricsAddress
	}
	if c.LogLevel == "" {
		c.LogLevel = constant.DefaultLogLevel
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.RootDir, logging.DefaultLogDirName)
	}
	if c.RotateLogMaxSize == 0 {
		c.RotateLogMaxSize = constant.DefaultRotateLogMaxSize
	}
	if c.RotateLogMaxBackups == 0 {
		c.RotateLogMaxBackups = constant.DefaultRotateLogMaxBackups
	}
	c.RotateLogMaxAge = constant.DefaultRotateLogMaxAge
	c.RotateLogLocalTime = constant.DefaultRotateLogLocalTime
	c.RotateLogCompress = constant.DefaultRotateLogCompress

	return nil
}

// RotateLogArgs converts c into the shape internal/logging.SetUp expects.
func (c *Config) RotateLogArgs() *logging.RotateLogArgs {
	return &logging.RotateLogArgs{
		RotateLogMaxSize:    c.RotateLogMaxSize,
		RotateLogMaxBackups: c.RotateLogMaxBackups,
		RotateLogMaxAge:     c.RotateLogMaxAge,
		RotateLogLocalTime:  c.RotateLogLocalTime,
		RotateLogCompress:   c.RotateLogCompress,
	}
}
