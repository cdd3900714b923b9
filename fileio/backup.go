package fileio

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotool/resolution-override-tool/db"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const BACKUP_TIME_LAYOUT = "20060102_150405"

var ErrNoConfigs = errors.New("no config files found")

// BackupFileName is config_backup_YYYYMMDD_HHMMSS.zip for t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("config_backup_%v.zip", t.Format(BACKUP_TIME_LAYOUT))
}

// ListConfigs returns the files of folder ending in suffix, sorted. The
// folder name is taken literally, brackets and all.
func ListConfigs(fs afero.Fs, folder string, suffix string) ([]string, error) {
	if exists, _ := afero.DirExists(fs, folder); !exists {
		return nil, &db.NotFoundError{Path: folder, Err: errors.New("config folder not found")}
	}
	infos, err := afero.ReadDir(fs, folder)
	if err != nil {
		return nil, &IOError{Op: "read", Path: folder, Err: err}
	}
	var configs []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), suffix) {
			continue
		}
		configs = append(configs, filepath.Join(folder, info.Name()))
	}
	return configs, nil
}

// BackupConfigs zips every config of folder into backupPath, or into a
// timestamped file inside folder when backupPath is empty.
func BackupConfigs(fs afero.Fs, folder string, backupPath string) (string, int, error) {
	configs, err := ListConfigs(fs, folder, CONFIG_EXTENSION)
	if err != nil {
		return "", 0, err
	}
	if len(configs) == 0 {
		return "", 0, fmt.Errorf("%w in [%v]", ErrNoConfigs, folder)
	}
	if backupPath == "" {
		backupPath = filepath.Join(folder, BackupFileName(time.Now()))
	}

	out, err := fs.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, &IOError{Op: "write", Path: backupPath, Err: err}
	}
	archive := zip.NewWriter(out)
	for _, config := range configs {
		if err = addToZip(fs, archive, config); err != nil {
			break
		}
	}
	if closeErr := archive.Close(); err == nil {
		err = closeErr
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fs.Remove(backupPath)
		return "", 0, &IOError{Op: "write", Path: backupPath, Err: err}
	}

	zap.S().Infof("Backed up %d config files to [%v]", len(configs), backupPath)
	return backupPath, len(configs), nil
}

func addToZip(fs afero.Fs, archive *zip.Writer, path string) error {
	in, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	writer, err := archive.CreateHeader(&zip.FileHeader{
		Name:   filepath.Base(path),
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, in)
	return err
}

type RestoreResult struct {
	Restored []string
	Skipped  []string
	// Rejected entries carry a path, only bare file names are restored.
	Rejected []string
}

// RestoreConfigs extracts the configs of a backup into folder. Existing
// files are kept unless overwrite is set.
func RestoreConfigs(fs afero.Fs, folder string, backupPath string, overwrite bool) (*RestoreResult, error) {
	if exists, _ := afero.DirExists(fs, folder); !exists {
		return nil, &db.NotFoundError{Path: folder, Err: errors.New("config folder not found")}
	}

	in, err := fs.Open(backupPath)
	if err != nil {
		return nil, &db.NotFoundError{Path: backupPath, Err: err}
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return nil, &IOError{Op: "read", Path: backupPath, Err: err}
	}

	// insecure entry names are rejected one by one below
	archive, err := zip.NewReader(in, info.Size())
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && archive != nil) {
		return nil, fmt.Errorf("invalid backup file [%v] (not a valid zip archive): %w", backupPath, err)
	}

	result := &RestoreResult{}
	found := false
	for _, entry := range archive.File {
		if !strings.HasSuffix(entry.Name, CONFIG_EXTENSION) {
			continue
		}
		found = true
		if !isBareFileName(entry.Name) {
			zap.S().Warnf("Skipping backup entry with a path [%v]", entry.Name)
			result.Rejected = append(result.Rejected, entry.Name)
			continue
		}

		target := filepath.Join(folder, entry.Name)
		if exists, _ := afero.Exists(fs, target); exists && !overwrite {
			zap.S().Infof("Skipped %v (already exists)", entry.Name)
			result.Skipped = append(result.Skipped, entry.Name)
			continue
		}
		if err := extractEntry(fs, entry, target); err != nil {
			return result, &IOError{Op: "write", Path: target, Err: err}
		}
		result.Restored = append(result.Restored, entry.Name)
	}
	if !found {
		return result, fmt.Errorf("%w in backup [%v]", ErrNoConfigs, backupPath)
	}

	zap.S().Infof("Restored %d config files, skipped %d", len(result.Restored), len(result.Skipped))
	return result, nil
}

func isBareFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, ":")
}

func extractEntry(fs afero.Fs, entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
