package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// supportedImageExtensions lists the inputs the transcoder can probe.
var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file.
	Name string
	// Data is the raw bytes of the image file.
	Data []byte
}

// IsImageFile reports whether path has a supported image extension.
func IsImageFile(path string) bool {
	return supportedImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadImageFile reads one image file.
//
// Arguments:
// - path: Path to the image file.
//
// Returns:
// - ImageFile: The file and its raw bytes.
// - error: Error if reading fails.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return ImageFile{Path: path, Name: filepath.Base(path), Data: data}, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile sorted by name, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !IsImageFile(file.Name()) {
			continue
		}

		img, err := LoadImageFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Name < images[j].Name
	})

	return images, nil
}
