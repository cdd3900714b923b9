package db

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const DEFAULT_ROM_EXTENSION = ".zip"

// ScanRomFolder returns the identifiers (file stems) of the ROMs in folder
// with the given extension, sorted. Hidden files and sub folders are skipped.
func ScanRomFolder(fs afero.Fs, folder string, ext string) ([]string, error) {
	if folder == "" {
		return nil, &NotFoundError{Path: folder, Err: errors.New("ROM folder not set")}
	}
	ext = NormalizeRomExtension(ext)

	files, err := afero.ReadDir(fs, folder)
	if err != nil {
		return nil, &NotFoundError{Path: folder, Err: err}
	}

	var result []string
	for _, file := range files {
		name := file.Name()
		//skip mac hidden files
		if file.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		result = append(result, name[:len(name)-len(ext)])
	}
	sort.Strings(result)
	return result, nil
}

// NormalizeRomExtension defaults to .zip and adds the leading dot.
func NormalizeRomExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DEFAULT_ROM_EXTENSION
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
