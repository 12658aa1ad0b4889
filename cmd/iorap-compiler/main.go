/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// iorap-compiler merges raw page-cache traces into one compiled-trace file
// (spec.md §4.3, §6's CLI surface).
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iorap-project/iorapd/pkg/compiler"
	"github.com/iorap-project/iorapd/pkg/inode2filename"
)

// Exit codes, spec.md §6: "0 success, 1 bad args, 2 no match, 3 pipeline
// error".
const (
	exitSuccess = iota
	exitBadArgs
	exitNoMatch
	exitPipelineError
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var (
		outputProto    string
		outputText     bool
		inodeTextcache string
		blacklist      string
		limitsRaw      []string
		verbose        bool
		wait           bool
	)

	cmd := &cobra.Command{
		Use:           "iorap-compiler [raw-trace-files...]",
		Short:         "Compile raw page-cache traces into a prefetch plan",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&outputProto, "output-proto", "", "compiled-trace protobuf output path (required)")
	cmd.Flags().BoolVar(&outputText, "output-text", false, "also write the diagnostic text rendering next to --output-proto")
	cmd.Flags().StringVar(&inodeTextcache, "inode-textcache", "", "text-cache file the inode resolver reads from instead of scanning disk")
	cmd.Flags().StringVar(&blacklist, "blacklist-filter", "", "drop resolved paths matching this regex")
	cmd.Flags().StringArrayVar(&limitsRaw, "timestamp_limit_ns", nil, "per-trace cutoff, positional-aligned with the input files (repeatable)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	// wait has no effect in this port: the original flag lets a developer
	// attach a debugger before the compiler starts; there is nothing
	// analogous to pause here.
	cmd.Flags().BoolVar(&wait, "wait", false, "")
	_ = cmd.Flags().MarkHidden("wait")

	exitCode := exitSuccess
	cmd.RunE = func(_ *cobra.Command, inputFiles []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if outputProto == "" {
			exitCode = exitBadArgs
			return errors.New("--output-proto is required")
		}

		limits, err := compiler.ParseTimestampLimits(limitsRaw)
		if err != nil {
			exitCode = exitBadArgs
			return err
		}

		inputs, err := compiler.BuildInputs(inputFiles, limits)
		if err != nil {
			exitCode = exitBadArgs
			return err
		}

		var blacklistRe *regexp.Regexp
		if blacklist != "" {
			blacklistRe, err = regexp.Compile(blacklist)
			if err != nil {
				exitCode = exitBadArgs
				return errors.Wrap(err, "invalid --blacklist-filter regex")
			}
		}

		source := inode2filename.DataSource(inode2filename.NewDiskScanSource(nil))
		if inodeTextcache != "" {
			source = inode2filename.NewTextCacheSource(inodeTextcache)
		}
		resolver := inode2filename.NewResolver(source, inode2filename.VerificationNone)

		result, err := compiler.Compile(context.Background(), inputs, resolver, blacklistRe)
		if err != nil {
			exitCode = exitPipelineError
			return err
		}
		if len(result.Trace.List) == 0 {
			exitCode = exitNoMatch
			return errors.New("no entries survived filtering/resolution")
		}

		if err := compiler.WriteProto(outputProto, result.Trace); err != nil {
			exitCode = exitPipelineError
			return err
		}
		if outputText {
			if err := compiler.WriteText(outputProto+".txt", result.Entries); err != nil {
				exitCode = exitPipelineError
				return err
			}
		}
		return nil
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "iorap-compiler:", err)
		if exitCode == exitSuccess {
			exitCode = exitBadArgs
		}
		return exitCode
	}
	return exitSuccess
}
