package fileio

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rotool/resolution-override-tool/db"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFileName(t *testing.T) {
	stamp := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "config_backup_20240309_140507.zip", BackupFileName(stamp))
}

func TestBackupAndRestore(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/roms/sf2.zip.cfg", []byte(sf2Config), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/roms/1942.zip.cfg", []byte("video_smooth = \"true\"\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/roms/sf2.zip", []byte("rom"), 0o644))

	path, count, err := BackupConfigs(fs, "/roms", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Regexp(t, `^/roms/config_backup_\d{8}_\d{6}\.zip$`, path)

	require.NoError(t, afero.WriteFile(fs, "/roms/sf2.zip.cfg", []byte("changed\n"), 0o644))
	require.NoError(t, fs.Remove("/roms/1942.zip.cfg"))

	result, err := RestoreConfigs(fs, "/roms", path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1942.zip.cfg"}, result.Restored)
	assert.Equal(t, []string{"sf2.zip.cfg"}, result.Skipped)
	content, _ := afero.ReadFile(fs, "/roms/sf2.zip.cfg")
	assert.Equal(t, "changed\n", string(content))

	result, err = RestoreConfigs(fs, "/roms", path, true)
	require.NoError(t, err)
	assert.Len(t, result.Restored, 2)
	content, _ = afero.ReadFile(fs, "/roms/sf2.zip.cfg")
	assert.Equal(t, sf2Config, string(content))
}

func TestBackupConfigsErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, _, err := BackupConfigs(fs, "/missing", "")
	assert.True(t, errors.Is(err, db.ErrNotFound))

	require.NoError(t, fs.MkdirAll("/empty", 0o755))
	_, _, err = BackupConfigs(fs, "/empty", "")
	assert.True(t, errors.Is(err, ErrNoConfigs))
}

func TestListConfigsBracketFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	folder := "/roms/MAME [2003]"
	require.NoError(t, afero.WriteFile(fs, folder+"/sf2.zip.cfg", []byte(sf2Config), 0o644))
	require.NoError(t, afero.WriteFile(fs, folder+"/sf2.zip", []byte("rom"), 0o644))
	require.NoError(t, fs.MkdirAll(folder+"/sub.cfg", 0o755))

	configs, err := ListConfigs(fs, folder, CONFIG_EXTENSION)
	require.NoError(t, err)
	assert.Equal(t, []string{folder + "/sf2.zip.cfg"}, configs)

	path, count, err := BackupConfigs(fs, folder, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, fs.Remove(folder+"/sf2.zip.cfg"))
	result, err := RestoreConfigs(fs, folder, path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"sf2.zip.cfg"}, result.Restored)
}

func TestRestoreRejectsPaths(t *testing.T) {
	buf := &bytes.Buffer{}
	archive := zip.NewWriter(buf)
	for _, name := range []string{"../evil.cfg", "sub/nested.cfg", "ok.zip.cfg", "notes.txt"} {
		w, err := archive.Create(name)
		require.NoError(t, err)
		_, _ = w.Write([]byte("video_smooth = \"true\"\n"))
	}
	require.NoError(t, archive.Close())

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/roms", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/backup.zip", buf.Bytes(), 0o644))

	result, err := RestoreConfigs(fs, "/roms", "/backup.zip", true)

	require.NoError(t, err)
	assert.Equal(t, []string{"ok.zip.cfg"}, result.Restored)
	assert.Equal(t, []string{"../evil.cfg", "sub/nested.cfg"}, result.Rejected)
	exists, _ := afero.Exists(fs, "/evil.cfg")
	assert.False(t, exists)
}

func TestRestoreInvalidBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/roms", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/backup.zip", []byte("not a zip"), 0o644))

	_, err := RestoreConfigs(fs, "/roms", "/backup.zip", true)
	assert.Error(t, err)

	_, err = RestoreConfigs(fs, "/roms", "/nothing.zip", true)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}
