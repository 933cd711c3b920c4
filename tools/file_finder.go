package tools

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/extract"
	"github.com/ecopia-map/potree_extract/internal/potree"
)

type FileFinder interface {
	GetSourcesToProcess(opts *extract.ExtractOptions) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

// Resolves every input to a point cloud folder. All the invalid inputs are
// reported together.
func (f *StandardFileFinder) GetSourcesToProcess(opts *extract.ExtractOptions) ([]string, error) {
	var sources []string
	var errs error
	seen := map[string]bool{}

	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			sources = append(sources, dir)
		}
	}

	for _, input := range opts.Inputs {
		// If recursive lookup is not enabled the input must itself be a point cloud,
		// otherwise look for metadata.json files below the input folder
		if !opts.Recursive {
			dir, err := potree.ResolveSource(input)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			add(dir)
			continue
		}

		found, err := f.getSourcesFromInputFolder(input)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, dir := range found {
			add(dir)
		}
	}

	if errs != nil {
		return nil, errs
	}
	if len(sources) == 0 {
		return nil, errors.Wrap(potree.ErrInvalidSource, "no point cloud to process")
	}
	return sources, nil
}

func (f *StandardFileFinder) getSourcesFromInputFolder(input string) ([]string, error) {
	var sources []string

	err := filepath.Walk(
		input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && info.Name() == potree.MetadataFile {
				sources = append(sources, filepath.Dir(path))
			}
			return nil
		},
	)
	if err != nil {
		return nil, errors.Wrapf(potree.ErrInvalidSource, "walking %s: %v", input, err)
	}
	if len(sources) == 0 {
		return nil, errors.Wrapf(potree.ErrInvalidSource, "no %s found below %s", potree.MetadataFile, input)
	}

	return sources, nil
}
