package extract

import "strings"

type Command string

const (
	CommandExtractArea    Command = "extract-area"
	CommandExtractProfile Command = "extract-profile"
	CommandCandidates     Command = "candidates"
)

// Deepest level a potree hierarchy can reasonably reach
const DefaultMaxLevel = 10000

// Contains the options needed for an extraction run
type ExtractOptions struct {
	Inputs           []string // Potree folders or metadata.json files
	Recursive        bool     // Look up point clouds in the subfolders of each input
	Area             string   // Region text, minmax/matrix/profile clauses or {...} matrices
	MinLevel         int      // Shallowest octree level to read
	MaxLevel         int      // Deepest octree level to read
	Workers          int      // Number of decoding goroutines, 0 means one per CPU
	DecodeAttempts   int      // Buffer doublings allowed when inflating a compressed node
	Output           string   // Output file, stdout when empty
	Format           string   // LAS, CSV, JSON, GEOJSON or COUNT, guessed from Output when empty
	OutputAttributes []string // Attributes to write, all of the source attributes when empty
	ZOffset          float64  // Z Offset to apply to written points
	GetCandidates    bool     // Only print the number of candidate points

	Command        Command
	ProfileOptions *ProfileOptions
}

type ProfileOptions struct {
	Coordinates string  // Polyline as "{x0,y0},{x1,y1},..."
	Width       float64 // Full width of the profile corridor
}

func (opt *ExtractOptions) Copy() *ExtractOptions {
	newOpt := *opt
	newOpt.Inputs = append([]string(nil), opt.Inputs...)
	newOpt.OutputAttributes = append([]string(nil), opt.OutputAttributes...)

	if opt.ProfileOptions != nil {
		profileOpt := *opt.ProfileOptions
		newOpt.ProfileOptions = &profileOpt
	}

	return &newOpt
}

// Splits a comma or space separated list, dropping empty entries
func ParseList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
