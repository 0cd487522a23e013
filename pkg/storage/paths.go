// Package storage derives the file locations of archived objects from their
// concept URIs and maintains the manifests that index those files.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ErrUnsupportedURI is returned for concept URIs outside the archive's
// identifier scheme.
var ErrUnsupportedURI = errors.New("unsupported concept URI")

const (
	objectPathMarker = "/id/object/"
	archiveSegment   = "nl-wbdrazu"
	metaFileSuffix   = ".meta.json"
	manifestFileName = "manifest.json"
)

// ConceptURIToMetaFile maps a concept URI of the form
// .../id/object/nl-wbdrazu-{creator}-{archive}-{number} to the relative path
// of its meta file:
//
//	{creator}/nl-wbdrazu/{creator}/{archive}/{number/1e6}/{number%1e6/1000}/{identifier}.meta.json
//
// Both numeric directories are zero-padded to three digits.
func ConceptURIToMetaFile(conceptURI string) (string, error) {
	uri := strings.TrimSpace(conceptURI)
	if strings.HasPrefix(uri, "<") && strings.HasSuffix(uri, ">") {
		uri = uri[1 : len(uri)-1]
	}

	index := strings.LastIndex(uri, objectPathMarker)
	if index < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURI, conceptURI)
	}
	identifier := uri[index+len(objectPathMarker):]
	if identifier == "" || strings.Contains(identifier, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURI, conceptURI)
	}

	parts := strings.Split(identifier, "-")
	if len(parts) < 5 || parts[0]+"-"+parts[1] != archiveSegment {
		return "", fmt.Errorf("%w: identifier %q", ErrUnsupportedURI, identifier)
	}

	creatorID, archiveID := parts[2], parts[3]
	number, err := strconv.Atoi(parts[4])
	if err != nil || number < 0 {
		return "", fmt.Errorf("%w: numerical id is not an integer in identifier %q", ErrUnsupportedURI, identifier)
	}

	first := fmt.Sprintf("%03d", number/1_000_000)
	second := fmt.Sprintf("%03d", (number%1_000_000)/1000)

	return path.Join(creatorID, archiveSegment, creatorID, archiveID, first, second, identifier+metaFileSuffix), nil
}

// ManifestPathFor maps a relative meta file path to the manifest.json of
// its archive directory, the third ancestor of the file.
func ManifestPathFor(relativePath string) string {
	archiveDir := path.Dir(path.Dir(path.Dir(relativePath)))
	return path.Join(archiveDir, manifestFileName)
}

// S3KeyFor maps a relative meta file path to the key used inside manifests:
// the path from the nl-wbdrazu segment on, or without its first segment when
// that marker is absent.
func S3KeyFor(relativePath string) string {
	parts := strings.Split(relativePath, "/")
	for index, part := range parts {
		if part == archiveSegment {
			return strings.Join(parts[index:], "/")
		}
	}
	if len(parts) > 1 {
		return strings.Join(parts[1:], "/")
	}
	return relativePath
}
