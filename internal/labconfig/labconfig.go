// SPDX-License-Identifier: MPL-2.0

package labconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseFile is the defaults file, relative to the resources directory.
	DefaultBaseFile = "submodules/labmanager-common/lmcommon/configuration/config/labmanager.yaml.default"
	// DefaultOverrideFile is the developer override file, relative to the resources directory.
	DefaultOverrideFile = "labmanager-config-override.yaml"
	// DefaultOutputFile is the merged file, relative to the resources directory.
	DefaultOutputFile = "labmanager-config.yaml"
	// DeveloperResourcesDir holds the developer image's override and merged files.
	DeveloperResourcesDir = "developer_resources"
)

// ErrMerge is the sentinel error wrapped by MergeError.
var ErrMerge = errors.New("labmanager config merge failed")

type (
	// MergeError is returned when one of the config files cannot be read,
	// decoded, merged, or written.
	MergeError struct {
		Path  string
		Step  string
		Cause error
	}

	// Paths locates the three files of a merge.
	Paths struct {
		Base     string
		Override string
		Output   string
	}

	document = map[string]any
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Step, e.Path, e.Cause)
}

// Unwrap returns ErrMerge and the cause.
func (e *MergeError) Unwrap() []error { return []error{ErrMerge, e.Cause} }

// DefaultPaths returns the standard file locations under resourcesDir.
func DefaultPaths(resourcesDir string) Paths {
	return Paths{
		Base:     filepath.Join(resourcesDir, filepath.FromSlash(DefaultBaseFile)),
		Override: filepath.Join(resourcesDir, DefaultOverrideFile),
		Output:   filepath.Join(resourcesDir, DefaultOutputFile),
	}
}

// DeveloperPaths returns the file locations used by the developer image build.
// The base file is shared with labmanager; the override and output live under
// DeveloperResourcesDir.
func DeveloperPaths(resourcesDir string) Paths {
	dir := filepath.Join(resourcesDir, DeveloperResourcesDir)
	return Paths{
		Base:     filepath.Join(resourcesDir, filepath.FromSlash(DefaultBaseFile)),
		Override: filepath.Join(dir, DefaultOverrideFile),
		Output:   filepath.Join(dir, DefaultOutputFile),
	}
}

// Merge reads the base and override files and writes the merged document to outPath.
//
// Only top-level sections present in the base are considered. When the override
// carries the same section, its keys are merged into the base section and win on
// conflict. Sections that exist only in the override are dropped.
func Merge(basePath, overridePath, outPath string) error {
	base, err := readDocument(basePath)
	if err != nil {
		return err
	}
	override, err := readDocument(overridePath)
	if err != nil {
		return err
	}

	if err := mergeSections(base, override); err != nil {
		return &MergeError{Path: overridePath, Step: "merge", Cause: err}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(base); err != nil {
		return &MergeError{Path: outPath, Step: "encode", Cause: err}
	}
	if err := enc.Close(); err != nil {
		return &MergeError{Path: outPath, Step: "encode", Cause: err}
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return &MergeError{Path: outPath, Step: "write", Cause: err}
	}
	return nil
}

// MergeAt runs Merge with the given Paths.
func MergeAt(p Paths) error {
	return Merge(p.Base, p.Override, p.Output)
}

func mergeSections(base, override document) error {
	for key, baseValue := range base {
		overrideValue, ok := override[key]
		if !ok {
			continue
		}

		baseSection, baseIsMap := baseValue.(document)
		overrideSection, overrideIsMap := overrideValue.(document)
		if !baseIsMap || !overrideIsMap {
			base[key] = overrideValue
			continue
		}

		if err := mergo.Merge(&baseSection, overrideSection, mergo.WithOverride); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		base[key] = baseSection
	}
	return nil
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MergeError{Path: path, Step: "read", Cause: err}
	}

	doc := document{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MergeError{Path: path, Step: "decode", Cause: err}
	}
	return doc, nil
}
