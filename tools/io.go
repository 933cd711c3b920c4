package tools

import (
	"os"
	"path/filepath"
)

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

// Makes sure the folder that will hold the output file exists
func PrepareOutputPath(path string) error {
	if path == "" || path == "stdout" {
		return nil
	}
	return CreateDirectoryIfDoesNotExist(filepath.Dir(path))
}
