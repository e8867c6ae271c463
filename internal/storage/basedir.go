// Package storage resolves the configured image base directory and maps
// request image references onto local filesystem paths. Only local paths
// and file:// URIs are supported today; other schemes are rejected so a
// future S3/GCS backend fails loudly instead of silently misreading paths.
package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// baseDirAlias is the literal prefix clients may use to reference the
// configured base directory explicitly.
const baseDirAlias = "$image_base_dir/"

var (
	// ErrUnsupportedScheme reports a URI scheme other than file://.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	// ErrInvalidURI reports a malformed base directory URI.
	ErrInvalidURI = errors.New("invalid URI format")
)

// BaseDir is a validated image base directory.
type BaseDir struct {
	path string
}

// ParseBaseDir accepts a plain local path or a file:// URI with an absolute
// path and returns the base directory.
func ParseBaseDir(uri string) (BaseDir, error) {
	if path, ok := strings.CutPrefix(uri, "file://"); ok {
		if !strings.HasPrefix(path, "/") {
			return BaseDir{}, fmt.Errorf("%w: file:// URI must use absolute paths: %s", ErrInvalidURI, uri)
		}
		return BaseDir{path: path}, nil
	}
	if scheme, _, ok := strings.Cut(uri, "://"); ok {
		return BaseDir{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return BaseDir{path: uri}, nil
}

// Path returns the local filesystem path of the base directory.
func (b BaseDir) Path() string { return b.path }

// Exists reports whether the base directory is present on disk.
func (b BaseDir) Exists() bool {
	_, err := os.Stat(b.path)
	return err == nil
}

// Resolve maps an image reference onto an absolute path. References
// starting with "/" are taken verbatim; the "$image_base_dir/" alias is
// stripped and joined under the base; anything else is joined directly.
func (b BaseDir) Resolve(imageRef string) string {
	if strings.HasPrefix(imageRef, "/") {
		return imageRef
	}
	if rel, ok := strings.CutPrefix(imageRef, baseDirAlias); ok {
		return strings.TrimSuffix(b.path, "/") + "/" + rel
	}
	return strings.TrimSuffix(b.path, "/") + "/" + imageRef
}
