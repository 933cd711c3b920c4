package tools

import (
	"flag"
	"strings"

	"github.com/golang/glog"
)

const (
	CommandExtractArea    = "extract-area"
	CommandExtractProfile = "extract-profile"
	CommandCandidates     = "candidates"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

// Repeatable string flag, also accepting comma separated values
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

type ExtractFlags struct {
	Inputs           *[]string `json:"inputs"`
	Recursive        *bool     `json:"recursive"`
	Output           *string   `json:"output"`
	OutputFormat     *string   `json:"output_format"`
	OutputAttributes *string   `json:"output_attributes"`
	MinLevel         *int      `json:"min_level"`
	MaxLevel         *int      `json:"max_level"`
	Workers          *int      `json:"workers"`
	DecodeAttempts   *int      `json:"decode_attempts"`
	ZOffset          *float64  `json:"zoffset"`
	GetCandidates    *bool     `json:"get_candidates"`
	Silent           *bool     `json:"silent"`
	LogTimestamp     *bool     `json:"timestamp"`
	Help             *bool     `json:"help"`
}

type FlagsForCommandExtractArea struct {
	ExtractFlags
	Area *string `json:"area"`
}

type FlagsForCommandExtractProfile struct {
	ExtractFlags
	Coordinates *string  `json:"coordinates"`
	Width       *float64 `json:"width"`
}

type FlagsForCommandCandidates struct {
	ExtractFlags
	Area *string `json:"area"`
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	// -v is taken by glog verbosity
	version := defineBoolFlag("version", "", false, "Displays the version of potree_extract.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func defineExtractFlags(flagCommand *flag.FlagSet, config Config) ExtractFlags {
	inputs := &stringList{}
	defineStringListFlagCommand(flagCommand, inputs, "input", "i", "Specifies an input potree folder or metadata.json file. Can be repeated.")
	recursive := defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Looks up point clouds in the subfolders of every input folder.")
	output := defineStringFlagCommand(flagCommand, "output", "o", "", "Specifies the output file. When not set the result is written to stdout.")
	outputFormat := defineStringFlagCommand(flagCommand, "output-format", "f", "", "LAS, CSV, JSON, GEOJSON or COUNT. Default is guessed from the output file extension.")
	outputAttributes := defineStringFlagCommand(flagCommand, "output-attributes", "a", "", "Comma separated list of attributes to write, e.g. 'rgb,intensity,classification'. Default: all the attributes of the inputs.")
	minLevel := defineIntFlagCommand(flagCommand, "min-level", "", 0, "The result contains points starting from this octree level.")
	maxLevel := defineIntFlagCommand(flagCommand, "max-level", "", config.MaxLevel, "The result contains points up to this octree level.")
	workers := defineIntFlagCommand(flagCommand, "workers", "w", config.Workers, "Number of decoding goroutines, 0 means one per CPU.")
	decodeAttempts := defineIntFlagCommand(flagCommand, "decode-attempts", "", config.DecodeAttempts, "Number of times the decompression buffer may grow for one compressed node.")
	zOffset := defineFloat64FlagCommand(flagCommand, "zoffset", "z", 0, "Vertical offset to apply to written points, in meters.")
	getCandidates := defineBoolFlagCommand(flagCommand, "get-candidates", "", false, "Only prints the number of candidate points.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")

	return ExtractFlags{
		Inputs:           (*[]string)(inputs),
		Recursive:        recursive,
		Output:           output,
		OutputFormat:     outputFormat,
		OutputAttributes: outputAttributes,
		MinLevel:         minLevel,
		MaxLevel:         maxLevel,
		Workers:          workers,
		DecodeAttempts:   decodeAttempts,
		ZOffset:          zOffset,
		GetCandidates:    getCandidates,
		Silent:           silent,
		LogTimestamp:     logTimestamp,
		Help:             help,
	}
}

func ParseFlagsForCommandExtractArea(args []string, config Config) FlagsForCommandExtractArea {
	glog.Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-extract-area", flag.ExitOnError)

	extractFlags := defineExtractFlags(flagCommand, config)
	area := defineStringFlagCommand(flagCommand, "area", "", "", "Clip area, minmax([x,y(,z)],[x,y(,z)]), matrix(m0,...,m15), profile(width,[x,y],...) or unit cube matrices \"{m0,...,m15}\".")

	flagCommand.Parse(args)

	return FlagsForCommandExtractArea{
		ExtractFlags: extractFlags,
		Area:         area,
	}
}

func ParseFlagsForCommandExtractProfile(args []string, config Config) FlagsForCommandExtractProfile {
	glog.Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-extract-profile", flag.ExitOnError)

	extractFlags := defineExtractFlags(flagCommand, config)
	coordinates := defineStringFlagCommand(flagCommand, "coordinates", "c", "", "Coordinates of the profile segments, in the form \"{x0,y0},{x1,y1},...\".")
	width := defineFloat64FlagCommand(flagCommand, "width", "", 0, "Width of the profile.")

	flagCommand.Parse(args)

	return FlagsForCommandExtractProfile{
		ExtractFlags: extractFlags,
		Coordinates:  coordinates,
		Width:        width,
	}
}

func ParseFlagsForCommandCandidates(args []string, config Config) FlagsForCommandCandidates {
	glog.Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-candidates", flag.ExitOnError)

	extractFlags := defineExtractFlags(flagCommand, config)
	area := defineStringFlagCommand(flagCommand, "area", "", "", "Clip area, same syntax as extract-area.")

	flagCommand.Parse(args)

	getCandidates := true
	extractFlags.GetCandidates = &getCandidates

	return FlagsForCommandCandidates{
		ExtractFlags: extractFlags,
		Area:         area,
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringListFlagCommand(flagCommand *flag.FlagSet, output *stringList, name string, shortHand string, usage string) {
	flagCommand.Var(output, name, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Var(output, shortHand, usage+" (shorthand for "+name+")")
	}
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
