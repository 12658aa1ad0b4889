/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// iorap-inode2filename is the out-of-process inode resolver helper (spec.md
// §4.2: "out-of-process via fork+exec of the resolver binary communicating
// through an IPC channel"). By default it serves one request/response round
// trip over stdin/stdout (pkg/inode2filename.RunResolverServer); --emit-all
// instead dumps every known inode->path mapping as text, for diagnostics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iorap-project/iorapd/pkg/inode2filename"
)

func main() {
	var (
		roots     []string
		textCache string
		verify    bool
		emitAll   bool
	)

	cmd := &cobra.Command{
		Use:           "iorap-inode2filename",
		Short:         "Resolve page-cache inodes to file paths",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			var source inode2filename.DataSource
			if textCache != "" {
				source = inode2filename.NewTextCacheSource(textCache)
			} else {
				source = inode2filename.NewDiskScanSource(roots)
			}

			mode := inode2filename.VerificationNone
			if verify {
				mode = inode2filename.VerificationStat
			}
			resolver := inode2filename.NewResolver(source, mode)

			if emitAll {
				return emitAllMappings(c.Context(), resolver)
			}
			return inode2filename.RunResolverServer(c.Context(), os.Stdin, os.Stdout, resolver)
		},
	}
	cmd.Flags().StringSliceVar(&roots, "roots", nil, "disk-scan root directories, defaults to spec.md's standard set")
	cmd.Flags().StringVar(&textCache, "text-cache", "", "resolve from a persisted text-cache file instead of scanning disk")
	cmd.Flags().BoolVar(&verify, "verify", true, "re-stat each candidate path before trusting it")
	cmd.Flags().BoolVar(&emitAll, "emit-all", false, "print every known (inode, path) mapping and exit, instead of serving one request")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "iorap-inode2filename:", err)
		os.Exit(1)
	}
}

func emitAllMappings(ctx context.Context, resolver *inode2filename.Resolver) error {
	for res := range resolver.EmitAll(ctx) {
		if res.Err != nil {
			continue
		}
		fmt.Printf("%d %d %d %s\n", res.Inode.DeviceMajor, res.Inode.DeviceMinor, res.Inode.Inode, res.Path)
	}
	return nil
}
