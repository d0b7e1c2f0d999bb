package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadedCase is a Case together with the suite and file it came from,
// mirroring conformance's LoadedTest.
type LoadedCase struct {
	File  string
	Suite Suite
	Case  Case
}

// LoadDir walks dir for *.yaml files and loads every case in each,
// grounded on conformance/loader.go's LoadAllTests.
func LoadDir(dir string) ([]LoadedCase, error) {
	var loaded []LoadedCase

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		suite, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("scenario: %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		for _, c := range suite.Cases {
			loaded = append(loaded, LoadedCase{File: rel, Suite: suite, Case: c})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func loadFile(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, err
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return Suite{}, err
	}
	return suite, nil
}
