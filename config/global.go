/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// GlobalConfig caches the directories derived from RootDir, matching the
// teacher's package-level cached-config idiom (config/global.go) so callers
// don't have to thread a *Config through the whole call graph.
type GlobalConfig struct {
	RootDir    string
	SocketRoot string
	DBDir      string
}

var globalConfig GlobalConfig

// ProcessConfigurations derives and caches the root-relative directories,
// and creates the root directory itself (mode 0755, matching spec.md §6's
// "intermediate directories are created with mode 0755").
func ProcessConfigurations(c *Config) error {
	if err := os.MkdirAll(c.RootDir, 0755); err != nil {
		return errors.Wrapf(err, "create root dir %s", c.RootDir)
	}

	globalConfig = GlobalConfig{
		RootDir:    c.RootDir,
		SocketRoot: filepath.Dir(c.SocketPath),
		DBDir:      c.RootDir,
	}

	return nil
}

func GetRootDir() string {
	return globalConfig.RootDir
}

func GetDBDir() string {
	return globalConfig.DBDir
}
