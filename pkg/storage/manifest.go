package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
)

// ErrManifestConflict is returned when two manifests carry different values
// for the same key.
var ErrManifestConflict = errors.New("conflicting manifest entry")

// ManifestSuffix names the partial manifests that MergeDirectory collects.
const ManifestSuffix = ".manifest.json"

// Manifest maps S3 keys to file metadata such as MD5Hash, MD5HashDate and URI.
type Manifest map[string]any

// LoadManifest reads a manifest file. The file must hold a JSON object.
func LoadManifest(manifestPath string) (Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}
	if manifest == nil {
		return nil, fmt.Errorf("manifest %s is not a JSON object", manifestPath)
	}
	return manifest, nil
}

// Merge adds the entries of other. A key already present with an equal value
// is kept once; a different value is an ErrManifestConflict.
func (manifest Manifest) Merge(other Manifest) error {
	keys := make([]string, 0, len(other))
	for key := range other {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := other[key]
		if existing, found := manifest[key]; found {
			if !reflect.DeepEqual(existing, value) {
				return fmt.Errorf("%w: %s", ErrManifestConflict, key)
			}
			continue
		}
		manifest[key] = value
	}
	return nil
}

// MergeResult summarizes a MergeDirectory run.
type MergeResult struct {
	Files    []string
	Manifest Manifest
}

// MergeDirectory merges every *.manifest.json directly inside dir, in name
// order.
func MergeDirectory(dir string) (*MergeResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+ManifestSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	sort.Strings(files)

	result := &MergeResult{Files: files, Manifest: Manifest{}}
	for _, file := range files {
		partial, err := LoadManifest(file)
		if err != nil {
			return nil, err
		}
		if err := result.Manifest.Merge(partial); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	return result, nil
}

// Save writes the manifest with two-space indentation and sorted keys.
func (manifest Manifest) Save(manifestPath string) error {
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(manifestPath, buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
