package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rotool/resolution-override-tool/settings"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testDat = `<?xml version="1.0"?>
<datafile>
	<header><version>1.0</version></header>
	<game name="sf2">
		<description>Street Fighter II</description>
		<year>1991</year>
		<manufacturer>Capcom</manufacturer>
		<video type="raster" orientation="horizontal" width="384" height="224"/>
	</game>
	<game name="1942">
		<description>1942</description>
		<video type="raster" orientation="vertical" width="224" height="256"/>
	</game>
	<game name="sf2ce" cloneof="sf2">
		<description>Street Fighter II Champion Edition</description>
		<manufacturer>Capcom</manufacturer>
		<video type="raster" orientation="horizontal" width="384" height="224"/>
	</game>
	<game name="mk2" cloneof="mk">
		<description>Mortal Kombat II</description>
	</game>
	<game name="unknown_game">
		<description>No video</description>
	</game>
</datafile>
`

type consoleFixture struct {
	fs       afero.Fs
	settings *settings.AppSettings
	out      *bytes.Buffer
	console  *Console
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dats/fbneo.dat", []byte(testDat), 0o644))
	for _, rom := range []string{"sf2", "1942", "unknown_game"} {
		require.NoError(t, afero.WriteFile(fs, "/roms/"+rom+".zip", []byte("rom"), 0o644))
	}
	// the catalog cache is a bolt file on the real disk
	appSettings := settings.NewAppSettings(fs, t.TempDir())
	out := &bytes.Buffer{}
	return &consoleFixture{
		fs:       fs,
		settings: appSettings,
		out:      out,
		console:  CreateConsole(fs, appSettings, zaptest.NewLogger(t).Sugar(), out),
	}
}

func (f *consoleFixture) run(args ...string) int {
	f.out.Reset()
	return f.console.Start(context.Background(), args)
}

func (f *consoleFixture) read(t *testing.T, path string) string {
	t.Helper()
	content, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(content)
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-system", "FBNeo", "-game", "sf2", "-game-override", ",,10,20"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "FBNeo", opts.system)
	assert.Equal(t, ",,10,20", opts.gameOverride)

	_, err = parseFlags([]string{"-game-override", "1,1"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUsage))

	_, err = parseFlags([]string{"-remove", "-remove-all"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUsage))

	_, err = parseFlags([]string{"-system", "x", "stray"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUsage))

	_, err = parseFlags([]string{"-nope"}, &bytes.Buffer{})
	assert.Error(t, err)

	opts, err = parseFlags([]string{"-all", "-remove-all", "-save"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, opts.all)
	assert.True(t, opts.removeAll)

	for _, args := range [][]string{
		{"-all", "-game", "sf2"},
		{"-all", "-list"},
		{"-all", "-backup"},
		{"-all", "-remove"},
		{"-all", "-system", "FBNeo"},
		{"-all", "-override", "1,1"},
	} {
		_, err = parseFlags(args, &bytes.Buffer{})
		assert.True(t, errors.Is(err, errUsage), "%v", args)
	}
}

func TestAdhocRun(t *testing.T) {
	f := newConsoleFixture(t)

	code := f.run("-dat", "/dats/fbneo.dat", "-roms", "/roms", "-export", "/export", "-override", "1920,1080")

	assert.Equal(t, EXIT_OK, code)
	assert.Equal(t, `aspect_ratio_index = "23"
custom_viewport_x = "0"
custom_viewport_y = "0"
custom_viewport_width = "1920"
custom_viewport_height = "1080"
`, f.read(t, "/export/sf2.zip.cfg"))
	assert.Contains(t, f.read(t, "/export/unknown_game.zip.cfg"), `custom_viewport_width = "1920"`)
	assert.Empty(t, f.settings.Systems)
}

func TestAdhocRunReportsSkippedGames(t *testing.T) {
	f := newConsoleFixture(t)

	code := f.run("-dat", "/dats/fbneo.dat", "-roms", "/roms")

	assert.Equal(t, EXIT_OK, code)
	assert.Contains(t, f.out.String(), "unknown_game")
	assert.Contains(t, f.out.String(), "unresolved")
	exists, _ := afero.Exists(f.fs, "/roms/unknown_game.zip.cfg")
	assert.False(t, exists)
	assert.Contains(t, f.read(t, "/roms/1942.zip.cfg"), `custom_viewport_height = "256"`)
}

func TestSavedSystemWorkflow(t *testing.T) {
	f := newConsoleFixture(t)

	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))
	require.Len(t, f.settings.Systems, 1)
	assert.False(t, f.settings.Changed())

	require.Equal(t, EXIT_OK, f.run("-systems"))
	assert.Contains(t, f.out.String(), "FBNeo")

	code := f.run("-system", "FBNeo", "-override", "1920,1080", "-game", "sf2", "-game-override", ",,10,20")
	require.Equal(t, EXIT_OK, code)
	assert.Contains(t, f.read(t, "/roms/sf2.zip.cfg"), `custom_viewport_x = "10"`)
	exists, _ := afero.Exists(f.fs, "/roms/1942.zip.cfg")
	assert.False(t, exists)

	system, _ := f.settings.System("FBNeo")
	assert.Equal(t, 1920, *system.Override().Width)
	assert.Equal(t, 20, *system.GameOverride("sf2").Y)

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-list", "-filter", "street"))
	assert.Contains(t, f.out.String(), "1920x1080 at (10, 20)")
	assert.NotContains(t, f.out.String(), "1942")

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-remove", "-game", "sf2"))
	exists, _ = afero.Exists(f.fs, "/roms/sf2.zip.cfg")
	assert.False(t, exists)

	require.Equal(t, EXIT_OK, f.run("-delete-system", "-system", "FBNeo"))
	assert.Empty(t, f.settings.Systems)
}

func TestAutoSaveOff(t *testing.T) {
	f := newConsoleFixture(t)
	f.settings.AutoSaveEnabled = false

	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))
	assert.True(t, f.settings.Changed())
	assert.Contains(t, f.out.String(), "not saved")

	require.Equal(t, EXIT_OK, f.run("-systems", "-save"))
	assert.False(t, f.settings.Changed())
}

func TestUnknownGameFails(t *testing.T) {
	f := newConsoleFixture(t)

	code := f.run("-dat", "/dats/fbneo.dat", "-roms", "/roms", "-game", "sf2x")

	assert.Equal(t, EXIT_FAILURE, code)
	assert.Contains(t, f.out.String(), "did you mean: sf2")
}

func TestUsageErrors(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, EXIT_FAILURE, f.run())
	assert.Equal(t, EXIT_FAILURE, f.run("-system", "nope"))
	assert.Equal(t, EXIT_FAILURE, f.run("-add", "-system", "x"))
	assert.Equal(t, EXIT_FAILURE, f.run("-dat", "/dats/fbneo.dat", "-roms", "/roms", "-override", "1920,abc"))
	assert.Equal(t, EXIT_FAILURE, f.run("-download", "nope"))
	assert.Equal(t, EXIT_FAILURE, f.run("-all"))
	assert.Equal(t, EXIT_OK, f.run("-h"))
}

func TestMissingCatalogFails(t *testing.T) {
	f := newConsoleFixture(t)

	code := f.run("-dat", "/dats/missing.dat", "-roms", "/roms")

	assert.Equal(t, EXIT_FAILURE, code)
	assert.Contains(t, f.out.String(), "not found")
}

func TestAllSystemsAndRemoveAll(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms", "-override", "640,480"))
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "Broken", "-dat", "/dats/missing.dat", "-roms", "/roms", "-export", "/broken"))

	assert.Equal(t, EXIT_FAILURE, f.run("-all"))
	assert.Contains(t, f.read(t, "/roms/unknown_game.zip.cfg"), `custom_viewport_width = "640"`)

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-remove-all"))
	exists, _ := afero.Exists(f.fs, "/roms/sf2.zip.cfg")
	assert.False(t, exists)
}

func TestBackupAndRestore(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))
	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo"))

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-backup"))
	assert.Contains(t, f.out.String(), "Backed up 2 config files")

	matches, err := afero.Glob(f.fs, "/roms/config_backup_*.zip")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-remove"))
	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-restore", matches[0]))
	assert.Contains(t, f.read(t, "/roms/sf2.zip.cfg"), `custom_viewport_width = "384"`)
}

func TestSources(t *testing.T) {
	f := newConsoleFixture(t)

	require.Equal(t, EXIT_OK, f.run("-sources"))

	assert.Contains(t, f.out.String(), "MAME 2003 Plus")
	assert.Contains(t, f.out.String(), "fbneo_arcade.dat")
}

func TestAllSystemsRemoveAllStripsConfigs(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))
	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo"))
	require.NoError(t, afero.WriteFile(f.fs, "/roms/1942.zip.cfg", []byte("video_smooth = \"true\"\ncustom_viewport_width = \"224\"\n"), 0o644))

	code := f.run("-all", "-remove-all")

	assert.Equal(t, EXIT_OK, code)
	exists, _ := afero.Exists(f.fs, "/roms/sf2.zip.cfg")
	assert.False(t, exists)
	exists, _ = afero.Exists(f.fs, "/roms/sf2.zip")
	assert.True(t, exists)
	assert.Equal(t, "video_smooth = \"true\"\n", f.read(t, "/roms/1942.zip.cfg"))
}

func TestAllRejectsOtherModes(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))

	assert.Equal(t, EXIT_FAILURE, f.run("-all", "-game", "sf2"))
	assert.Contains(t, f.out.String(), "-game")
	assert.Equal(t, EXIT_FAILURE, f.run("-all", "-list"))
	assert.Equal(t, EXIT_FAILURE, f.run("-all", "-backup"))

	exists, _ := afero.Exists(f.fs, "/roms/sf2.zip.cfg")
	assert.False(t, exists)
}

func TestListGamesShowsCatalogDetails(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms"))
	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo"))
	require.NoError(t, afero.WriteFile(f.fs, "/roms/unknown_game.zip.cfg", []byte("video_smooth = \"true\"\n"), 0o644))

	require.Equal(t, EXIT_OK, f.run("-system", "FBNeo", "-list"))

	out := f.out.String()
	assert.Contains(t, out, "Warning: 1 clones name a parent that is not in the catalog")
	assert.Contains(t, out, "Capcom")
	assert.Contains(t, out, "vertical")
	assert.Contains(t, out, "raster")
	assert.Contains(t, out, "mk (missing)")
	assert.Contains(t, out, "384x224 at (0, 0)")
	assert.Contains(t, out, "no viewport")
}

func TestShowSettings(t *testing.T) {
	f := newConsoleFixture(t)
	require.Equal(t, EXIT_OK, f.run("-add", "-system", "FBNeo", "-dat", "/dats/fbneo.dat", "-roms", "/roms", "-override", "640,480"))

	require.Equal(t, EXIT_OK, f.run("-show-settings"))

	assert.Contains(t, f.out.String(), `"name": "FBNeo"`)
	assert.Contains(t, f.out.String(), `"override_width": 640`)
}
