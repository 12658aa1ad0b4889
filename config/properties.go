/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"strconv"
	"strings"
	"sync"

	"github.com/iorap-project/iorapd/internal/constant"
	"github.com/iorap-project/iorapd/pkg/slices"
)

// Property keys, matching spec.md §6 verbatim (the `iorapd.*` /
// `runtime_native_boot` namespace system properties the original binds).
const (
	PropPerfettoEnable        = "iorapd.perfetto.enable"
	PropReadaheadEnable        = "iorapd.readahead.enable"
	PropReadaheadStrategy      = "iorapd.readahead.strategy"
	PropReadaheadOutOfProcess  = "iorapd.readahead.out_of_process"
	PropPerfettoMaxTraces      = "iorapd.perfetto.max_traces"
	PropMaintenanceMinTraces   = "iorapd.maintenance.min_traces"
	PropCompilerTimeoutMillis  = "iorapd.maintenance.compiler_timeout_ms"
	PropBlacklistPackages      = "iorapd.blacklist_packages"
	PropReadaheadVerboseIPC    = "iorapd.readahead.verbose_ipc"
)

// PropertyStore is a RWMutex-guarded live configuration cache refreshed by
// `dumpsys --refresh-properties` (see SPEC_FULL.md §11). It is the iorapd
// analogue of the teacher's package-level GlobalConfig cache, made mutable
// at runtime rather than fixed at process start.
type PropertyStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewPropertyStore seeds a PropertyStore from a parsed Config's
// [properties] table.
func NewPropertyStore(seed map[string]string) *PropertyStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &PropertyStore{values: values}
}

// Refresh atomically replaces the live property set, matching
// `dumpsys --refresh-properties`'s re-read-everything semantics.
func (p *PropertyStore) Refresh(values map[string]string) {
	fresh := make(map[string]string, len(values))
	for k, v := range values {
		fresh[k] = v
	}

	p.mu.Lock()
	p.values = fresh
	p.mu.Unlock()
}

func (p *PropertyStore) get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *PropertyStore) getBool(key string, def bool) bool {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (p *PropertyStore) getInt(key string, def int) int {
	v, ok := p.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (p *PropertyStore) getString(key, def string) string {
	v, ok := p.get(key)
	if !ok || v == "" {
		return def
	}
	return v
}

func (p *PropertyStore) PerfettoEnabled() bool {
	return p.getBool(PropPerfettoEnable, constant.DefaultPerfettoEnable)
}

func (p *PropertyStore) ReadaheadEnabled() bool {
	return p.getBool(PropReadaheadEnable, constant.DefaultReadaheadEnable)
}

func (p *PropertyStore) ReadaheadStrategy() string {
	return p.getString(PropReadaheadStrategy, constant.DefaultReadaheadStrategy)
}

func (p *PropertyStore) ReadaheadOutOfProcess() bool {
	return p.getBool(PropReadaheadOutOfProcess, constant.DefaultReadaheadOutOfProcess)
}

func (p *PropertyStore) PerfettoMaxTraces() int {
	return p.getInt(PropPerfettoMaxTraces, constant.DefaultPerfettoMaxTraces)
}

func (p *PropertyStore) MaintenanceMinTraces() int {
	return p.getInt(PropMaintenanceMinTraces, constant.DefaultMaintenanceMinTraces)
}

func (p *PropertyStore) CompilerTimeoutMillis() int {
	return p.getInt(PropCompilerTimeoutMillis, constant.DefaultCompilerTimeoutMillis)
}

func (p *PropertyStore) VerboseIPC() bool {
	return p.getBool(PropReadaheadVerboseIPC, constant.DefaultVerboseIPC)
}

// BlacklistPackages parses the ";"-separated package blacklist.
func (p *PropertyStore) BlacklistPackages() []string {
	raw, ok := p.get(PropBlacklistPackages)
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, pkg := range parts {
		pkg = strings.TrimSpace(pkg)
		if pkg != "" {
			out = append(out, pkg)
		}
	}
	return slices.RemoveDuplicates(out)
}

// IsBlacklisted reports whether pkg appears in the blacklist.
func (p *PropertyStore) IsBlacklisted(pkg string) bool {
	return slices.Contains(p.BlacklistPackages(), pkg)
}
