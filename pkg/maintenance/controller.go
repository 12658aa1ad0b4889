/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package maintenance implements the background maintenance job: compiling
// pending raw traces into prefetch plans and pruning stale package rows
// (spec.md §4.8), grounded on
// _examples/original_source/system/iorap/src/maintenance/controller.cc and
// db_cleaner.cc.
package maintenance

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/containerd/containerd/log"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/iorap-project/iorapd/config"
	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/errdefs"
	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/store"
)

// Params configures one compilation pass, the Go counterpart of
// controller.cc's ControllerParameters.
type Params struct {
	// Recompile forces recompilation even if an up to date compiled trace
	// already exists on disk with a matching prefetch_files row.
	Recompile bool
	// OutputText additionally writes the diagnostic text rendering next to
	// the compiled-trace protobuf (controller_params.output_text).
	OutputText bool
	// InodeTextcache, if non-empty, is passed through to the compiler child
	// as --inode-textcache (out-of-process inode resolution source).
	InodeTextcache string
	Verbose        bool

	// CompilerBinaryPath is the fork+exec target; defaults to
	// constant.DefaultCompilerBinaryPath when empty.
	CompilerBinaryPath string
	// CompilerTimeout bounds how long the forked compiler may run before
	// the watchdog sends SIGKILL; defaults to
	// config.PropertyStore.CompilerTimeoutMillis() when zero.
	CompilerTimeout time.Duration
	// MinTraces is the minimum number of eligible raw traces an activity
	// needs before it's worth compiling; defaults to
	// config.PropertyStore.MaintenanceMinTraces() when zero.
	MinTraces int
	// RootDir is the on-disk trace root; defaults to constant.DefaultRootDir
	// when empty.
	RootDir string
}

// resolved fills in defaults sourced from config.PropertyStore, mirroring
// the android::base::GetIntProperty calls scattered through controller.cc.
func (p Params) resolved(properties *config.PropertyStore) Params {
	if p.CompilerBinaryPath == "" {
		p.CompilerBinaryPath = constant.DefaultCompilerBinaryPath
	}
	if p.CompilerTimeout == 0 {
		p.CompilerTimeout = time.Duration(properties.CompilerTimeoutMillis()) * time.Millisecond
	}
	if p.MinTraces == 0 {
		p.MinTraces = properties.MaintenanceMinTraces()
	}
	if p.RootDir == "" {
		p.RootDir = constant.DefaultRootDir
	}
	return p
}

// Controller runs compilation passes against a single database.
type Controller struct {
	db         *store.Database
	properties *config.PropertyStore

	// sem bounds how many compiler children run at once across every
	// CompileActivity call the controller makes, regardless of which
	// CompilePackage/CompileAppsOnDevice call started them. controller.cc
	// forks its children one at a time off a single job thread; this widens
	// that to a small fixed pool instead of reproducing the single thread.
	sem *semaphore.Weighted

	// mu guards activitiesCompiled against concurrent CompileActivity calls.
	mu sync.Mutex
	// activitiesCompiled counts how many activities the most recent
	// CompileAppsOnDevice call actually invoked the compiler for, the Go
	// equivalent of LastJobInfo::activities_last_compiled_.
	activitiesCompiled int
	lastRunAt          time.Time
}

func NewController(db *store.Database, properties *config.PropertyStore) *Controller {
	return &Controller{
		db:         db,
		properties: properties,
		sem:        semaphore.NewWeighted(constant.DefaultMaintenanceMaxConcurrentCompiles),
	}
}

// ActivitiesCompiledLastRun and LastRunAt report the most recent
// CompileAppsOnDevice pass's results, the Go counterpart of controller.cc's
// Dump() "Background job:" section.
func (c *Controller) ActivitiesCompiledLastRun() int { return c.activitiesCompiled }
func (c *Controller) LastRunAt() time.Time           { return c.lastRunAt }

func perfettoTraceInputs(db *store.Database, histories []models.AppLaunchHistory) ([]string, []uint64) {
	var paths []string
	var limits []uint64
	for _, h := range histories {
		rt, err := db.SelectRawTraceByHistoryID(h.ID)
		if err != nil {
			// Normal: non-cold or untraced launches have no raw trace row.
			continue
		}
		limit := uint64(1<<64 - 1)
		if h.ReportFullyDrawnNs != nil {
			limit = *h.ReportFullyDrawnNs
		} else if h.TotalTimeNs != nil {
			limit = *h.TotalTimeNs
		}
		paths = append(paths, rt.FilePath)
		limits = append(limits, limit)
	}
	return paths, limits
}

// CompileActivity compiles the eligible raw traces for one activity into a
// compiled-trace protobuf, forking the compiler binary and inserting a
// prefetch_files row on success. Grounded on controller.cc's
// CompileActivity.
func (c *Controller) CompileActivity(ctx context.Context, packageID int64, packageName, activityName string, version int, params Params) error {
	params = params.resolved(c.properties)
	vcn := models.VersionedComponentName{Package: packageName, Activity: activityName, Version: version}.Canonicalize()
	outputPath := compiledTracePath(params.RootDir, vcn)

	log.G(ctx).Debugf("maintenance: compile activity %s@%d", vcn, version)

	if !params.Recompile {
		if _, err := os.Stat(outputPath); err == nil {
			if _, err := c.db.SelectPrefetchFileByVersionedComponentName(vcn); err == nil {
				return nil
			}
			log.G(ctx).Warnf("maintenance: missing prefetch_files row for %s, recompiling", vcn)
		}
	}

	activity, err := c.db.SelectActivityByNameAndPackageID(activityName, packageID)
	if err != nil {
		return errors.Wrapf(err, "find activity %s for package_id %d", activityName, packageID)
	}

	histories, err := c.db.SelectActivityHistoryForCompile(activity.ID)
	if err != nil {
		return errors.Wrap(err, "select histories for compile")
	}

	paths, limits := perfettoTraceInputs(c.db, histories)
	if len(paths) < params.MinTraces {
		log.G(ctx).Debugf("maintenance: only %d eligible traces for %s, want %d", len(paths), vcn, params.MinTraces)
		return nil
	}

	c.mu.Lock()
	c.activitiesCompiled++
	c.mu.Unlock()

	if err := os.MkdirAll(compiledTraceDir(params.RootDir, vcn), 0755); err != nil {
		return errors.Wrapf(err, "mkdir for %s", vcn)
	}

	if err := c.invokeCompiler(ctx, paths, limits, outputPath, params); err != nil {
		compileFailures.Inc()
		return errors.Wrapf(err, "compile %s", vcn)
	}

	if _, err := c.db.UpsertPrefetchFile(activity.ID, outputPath); err != nil {
		return errors.Wrapf(err, "insert prefetch_files row for %s", vcn)
	}
	return nil
}

// invokeCompiler forks the compiler binary, bounded by c.sem so that at most
// constant.DefaultMaintenanceMaxConcurrentCompiles children run at once
// across every CompileActivity call this controller makes concurrently.
func (c *Controller) invokeCompiler(ctx context.Context, paths []string, limits []uint64, outputPath string, params Params) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "acquire compiler slot")
	}
	defer c.sem.Release(1)

	var args []string
	args = append(args, paths...)
	for _, limit := range limits {
		args = append(args, "--timestamp_limit_ns", strconv.FormatUint(limit, 10))
	}
	if params.OutputText {
		args = append(args, "--output-text")
	}
	args = append(args, "--output-proto", outputPath)
	if params.InodeTextcache != "" {
		args = append(args, "--inode-textcache", params.InodeTextcache)
	}
	if params.Verbose {
		args = append(args, "--verbose")
	}

	compileAttempts.Inc()
	start := time.Now()
	err := runWithWatchdog(ctx, params.CompilerBinaryPath, args, params.CompilerTimeout)
	compileDuration.Observe(time.Since(start).Seconds())
	return err
}

// CompilePackage compiles every activity of one (name, version) package
// concurrently, bounded by c.sem, aggregating every activity's failure
// instead of stopping at the first. Grounded on controller.cc's
// CompilePackage; the per-package sweep's error aggregation follows the
// same "collect everything, fail loud at the end" shape as db_cleaner.cc's
// CleanUpDatabase loop.
func (c *Controller) CompilePackage(ctx context.Context, packageName string, version int, params Params) error {
	pkg, err := c.db.SelectPackageByNameAndVersion(packageName, version)
	if err != nil {
		return errors.Wrapf(err, "find package %s@%d", packageName, version)
	}

	activities, err := c.db.SelectActivitiesByPackageID(pkg.ID)
	if err != nil {
		return errors.Wrapf(err, "select activities for %s", packageName)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, activity := range activities {
		activity := activity
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.CompileActivity(ctx, pkg.ID, pkg.Name, activity.Name, pkg.Version, params); err != nil {
				log.G(ctx).Warnf("maintenance: compile activity %s/%s failed: %v", pkg.Name, activity.Name, err)
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// CompileAppsOnDevice compiles every package currently in the database,
// fanning packages out concurrently (compiler forks themselves stay bounded
// by c.sem) and aggregating every package's failure. Grounded on
// controller.cc's CompileAppsOnDevice.
func (c *Controller) CompileAppsOnDevice(ctx context.Context, params Params) error {
	c.mu.Lock()
	c.activitiesCompiled = 0
	c.mu.Unlock()

	packages, err := c.db.SelectAllPackages()
	if err != nil {
		return errors.Wrap(err, "select all packages")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, pkg := range packages {
		pkg := pkg
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.CompilePackage(ctx, pkg.Name, pkg.Version, params); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c.lastRunAt = time.Now()
	return result.ErrorOrNil()
}

// CompileSingleAppOnDevice compiles every installed version of one package
// name, aggregating every version's failure. Grounded on controller.cc's
// CompileSingleAppOnDevice.
func (c *Controller) CompileSingleAppOnDevice(ctx context.Context, packageName string, params Params) error {
	packages, err := c.db.SelectPackagesByName(packageName)
	if err != nil {
		return errors.Wrapf(err, "select packages named %s", packageName)
	}
	if len(packages) == 0 {
		return errdefs.ErrNotFound
	}

	var result *multierror.Error
	for _, pkg := range packages {
		if err := c.CompilePackage(ctx, pkg.Name, pkg.Version, params); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
