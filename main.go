/*
 * This file is part of potree_extract (https://github.com/ecopia-map/potree_extract),
 * a Potree 2.0 point cloud region and profile extractor.
 * Based on the Go Cesium Point Cloud Tiler (https://github.com/mfbonfigli/gocesiumtiler).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/ecopia-map/potree_extract/internal/extract"
	"github.com/ecopia-map/potree_extract/pkg"
	"github.com/ecopia-map/potree_extract/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/potree_extract/tools"
)

const VERSION = "1.0.0"

const logo = `
             _
 _ __   ___ | |_ _ __ ___  ___
| '_ \ / _ \| __| '__/ _ \/ _ \
| |_) | (_) | |_| | |  __/  __/
| .__/ \___/ \__|_|  \___|\___|  _ extract
|_|  Extracts the points of Potree 2.0 octrees
     Copyright YYYY
`

func main() {
	defer glog.Flush()

	flagsGlobal := tools.ParseFlagsGlobal()
	glog.Infoln(tools.FmtJSONString(flagsGlobal))

	if *flagsGlobal.Help {
		showHelp()
		return
	}
	if *flagsGlobal.Version {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		glog.Exit("Please specify a subcommand [extract-area|extract-profile|candidates].")
	}
	cmd, args := args[0], args[1:]

	config, err := tools.LoadConfig()
	if err != nil {
		glog.Exitf("Error reading configuration: %v", err)
	}

	// Ctrl+C stops the decoding goroutines and closes the output
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case tools.CommandExtractArea:
		mainCommandExtractArea(ctx, args, config)
	case tools.CommandExtractProfile:
		mainCommandExtractProfile(ctx, args, config)
	case tools.CommandCandidates:
		mainCommandCandidates(ctx, args, config)
	default:
		glog.Exitf("Unrecognized command [%q]. Command must be one of [extract-area|extract-profile|candidates]", cmd)
	}
}

func mainCommandExtractArea(ctx context.Context, args []string, config tools.Config) {
	flags := tools.ParseFlagsForCommandExtractArea(args, config)
	if *flags.Help {
		showHelp()
		return
	}

	opts := extractOptions(flags.ExtractFlags, extract.CommandExtractArea)
	opts.Area = *flags.Area

	if msg, res := validateOptions(&opts); !res {
		glog.Exit("Error parsing input parameters: " + msg)
	}
	runExtractor(ctx, flags.ExtractFlags, &opts)
}

func mainCommandExtractProfile(ctx context.Context, args []string, config tools.Config) {
	flags := tools.ParseFlagsForCommandExtractProfile(args, config)
	if *flags.Help {
		showHelp()
		return
	}

	opts := extractOptions(flags.ExtractFlags, extract.CommandExtractProfile)
	opts.ProfileOptions = &extract.ProfileOptions{
		Coordinates: *flags.Coordinates,
		Width:       *flags.Width,
	}

	if msg, res := validateOptions(&opts); !res {
		glog.Exit("Error parsing input parameters: " + msg)
	}
	runExtractor(ctx, flags.ExtractFlags, &opts)
}

func mainCommandCandidates(ctx context.Context, args []string, config tools.Config) {
	flags := tools.ParseFlagsForCommandCandidates(args, config)
	if *flags.Help {
		showHelp()
		return
	}

	opts := extractOptions(flags.ExtractFlags, extract.CommandCandidates)
	opts.Area = *flags.Area

	if msg, res := validateOptions(&opts); !res {
		glog.Exit("Error parsing input parameters: " + msg)
	}
	runExtractor(ctx, flags.ExtractFlags, &opts)
}

// Put args inside an ExtractOptions struct
func extractOptions(flags tools.ExtractFlags, command extract.Command) extract.ExtractOptions {
	return extract.ExtractOptions{
		Inputs:           *flags.Inputs,
		Recursive:        *flags.Recursive,
		MinLevel:         *flags.MinLevel,
		MaxLevel:         *flags.MaxLevel,
		Workers:          *flags.Workers,
		DecodeAttempts:   *flags.DecodeAttempts,
		Output:           *flags.Output,
		Format:           *flags.OutputFormat,
		OutputAttributes: extract.ParseList(*flags.OutputAttributes),
		ZOffset:          *flags.ZOffset,
		GetCandidates:    *flags.GetCandidates,
		Command:          command,
	}
}

func configureLogger(silent, timestamp bool) {
	if silent {
		tools.DisableLogger()
	} else {
		tools.EnableLogger()
	}
	if timestamp {
		tools.EnableLoggerTimestamp()
	} else {
		tools.DisableLoggerTimestamp()
	}
}

func runExtractor(ctx context.Context, flags tools.ExtractFlags, opts *extract.ExtractOptions) {
	// set logging and timestamp logging
	configureLogger(*flags.Silent, *flags.LogTimestamp)
	if !*flags.Silent {
		printLogo()
	}

	defer timeTrack(time.Now(), string(opts.Command))
	err := pkg.NewExtractor(tools.NewStandardFileFinder(), std_algorithm_manager.NewAlgorithmManager(opts)).RunExtractor(ctx, opts)

	if err != nil {
		glog.Exitf("Error while extracting: %v", err)
	}
}

// Validates the options provided to the command line tool, the sources
// themselves are checked when opened
func validateOptions(opts *extract.ExtractOptions) (string, bool) {
	if len(opts.Inputs) == 0 {
		return "at least one --input is required", false
	}
	for _, input := range opts.Inputs {
		if _, err := os.Stat(input); os.IsNotExist(err) {
			return "Input file/folder not found: " + input, false
		}
	}

	if opts.MinLevel < 0 {
		return "min-level cannot be negative", false
	}
	if opts.MaxLevel < opts.MinLevel {
		return "max-level parameter cannot be lower than min-level parameter", false
	}
	if opts.Workers < 0 {
		return "workers cannot be negative", false
	}

	if opts.Command == extract.CommandExtractProfile {
		if strings.TrimSpace(opts.ProfileOptions.Coordinates) == "" {
			return "missing argument: --coordinates", false
		}
		if opts.ProfileOptions.Width <= 0 {
			return "width must be greater than zero", false
		}
	} else if strings.TrimSpace(opts.Area) == "" {
		return "missing argument: --area", false
	}

	return "", true
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutput(fmt.Sprintf("%s took %s", name, elapsed))
}

// stdout may carry the extracted points, the banner goes to stderr
func printLogo() {
	fmt.Fprintln(os.Stderr, strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("potree_extract reads Potree 2.0 point clouds and writes the points inside an area or along a profile as LAS, CSV, JSON or GeoJSON")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Subcommands: extract-area, extract-profile, candidates. Run <subcommand> -help for their flags.")
	fmt.Println("")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
