package settings

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacySettings = `{
  "systems": [
    {
      "name": "FBNeo",
      "dat_file": "/dats/fbneo.dat",
      "rom_folder": "/roms/fbneo",
      "override_width": 1920,
      "override_height": null,
      "override_x": 0,
      "override_y": null,
      "export_folder": ""
    },
    {
      "name": "MAME 2003",
      "dat_file": "/dats/mame2003.xml",
      "rom_folder": "/roms/mame2003",
      "override_width": null,
      "override_height": null,
      "override_x": null,
      "override_y": null,
      "export_folder": "/configs/mame2003"
    }
  ],
  "current_system_idx": 7,
  "auto_save_enabled": false
}`

func TestNewAppSettingsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	a := NewAppSettings(fs, "/cfg")

	assert.Empty(t, a.Systems)
	assert.True(t, a.AutoSaveEnabled)
	assert.True(t, a.DeleteEmptyConfigs)
	assert.Equal(t, filepath.Join("/cfg", DAT_FOLDER), a.DatFolder)
	exists, _ := afero.Exists(fs, "/cfg/settings.json")
	assert.True(t, exists)
}

func TestNewAppSettingsCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/settings.json", []byte("{not json"), 0o644))

	a := NewAppSettings(fs, "/cfg")

	assert.Empty(t, a.Systems)
	content, _ := afero.ReadFile(fs, "/cfg/settings.json")
	assert.Contains(t, string(content), `"systems": []`)
}

func TestLoadLegacySettings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/settings.json", []byte(legacySettings), 0o644))

	a := NewAppSettings(fs, "/cfg")

	require.Len(t, a.Systems, 2)
	assert.Equal(t, 1, a.CurrentSystemIdx)
	assert.False(t, a.AutoSaveEnabled)
	assert.True(t, a.DeleteEmptyConfigs)

	fbneo, ok := a.System("FBNeo")
	require.True(t, ok)
	o := fbneo.Override()
	assert.Equal(t, 1920, *o.Width)
	assert.Nil(t, o.Height)
	assert.Equal(t, 0, *o.X)
	assert.Equal(t, "/roms/fbneo", fbneo.OutputFolder())

	current, ok := a.CurrentSystem()
	require.True(t, ok)
	assert.Equal(t, "MAME 2003", current.Name)
	assert.Equal(t, "/configs/mame2003", current.OutputFolder())
}

func TestSaveAndReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewAppSettings(fs, "/cfg")
	require.NoError(t, a.AddSystem(SystemConfig{Name: "FBNeo", DatFile: "/dats/fbneo.dat", RomFolder: "/roms"}))
	require.NoError(t, a.SetSystemOverride("FBNeo", viewport.Override{Width: viewport.Int(1920), Height: viewport.Int(1080)}))
	require.NoError(t, a.SetGameOverride("FBNeo", "sf2", viewport.Override{X: viewport.Int(10), Y: viewport.Int(20)}))
	assert.True(t, a.Changed())
	require.NoError(t, a.Save())
	assert.False(t, a.Changed())

	reloaded := NewAppSettings(fs, "/cfg")

	system, ok := reloaded.System("FBNeo")
	require.True(t, ok)
	assert.Equal(t, 1920, *system.Override().Width)
	game := system.GameOverride("sf2")
	assert.Equal(t, 10, *game.X)
	assert.Nil(t, game.Width)
	assert.True(t, system.GameOverride("1942").IsEmpty())
}

func TestAddSystemRejectsDuplicatesAndBlankNames(t *testing.T) {
	a := NewAppSettings(afero.NewMemMapFs(), "/cfg")
	require.NoError(t, a.AddSystem(SystemConfig{Name: "FBNeo"}))

	err := a.AddSystem(SystemConfig{Name: " FBNeo "})
	assert.True(t, errors.Is(err, ErrDuplicateSystem))

	assert.Error(t, a.AddSystem(SystemConfig{Name: "  "}))
	assert.Error(t, a.AddSystem(SystemConfig{Name: "Bad", OverrideWidth: viewport.Int(-1)}))
	assert.Len(t, a.Systems, 1)
}

func TestRemoveSystemKeepsCurrentInRange(t *testing.T) {
	a := NewAppSettings(afero.NewMemMapFs(), "/cfg")
	require.NoError(t, a.AddSystem(SystemConfig{Name: "a"}))
	require.NoError(t, a.AddSystem(SystemConfig{Name: "b"}))
	require.NoError(t, a.AddSystem(SystemConfig{Name: "c"}))
	assert.Equal(t, 2, a.CurrentSystemIdx)

	require.NoError(t, a.RemoveSystem("c"))
	assert.Equal(t, 1, a.CurrentSystemIdx)
	require.NoError(t, a.RemoveSystem("a"))
	assert.Equal(t, 0, a.CurrentSystemIdx)
	current, _ := a.CurrentSystem()
	assert.Equal(t, "b", current.Name)

	assert.True(t, errors.Is(a.RemoveSystem("zzz"), ErrUnknownSystem))
}

func TestGameOverrides(t *testing.T) {
	a := NewAppSettings(afero.NewMemMapFs(), "/cfg")
	require.NoError(t, a.AddSystem(SystemConfig{Name: "FBNeo"}))

	require.NoError(t, a.SetGameOverride("FBNeo", "sf2", viewport.Override{Width: viewport.Int(320)}))
	assert.Error(t, a.SetGameOverride("FBNeo", "sf2", viewport.Override{Width: viewport.Int(0)}))

	cleared, err := a.ClearGameOverride("FBNeo", "sf2")
	require.NoError(t, err)
	assert.True(t, cleared)
	cleared, err = a.ClearGameOverride("FBNeo", "sf2")
	require.NoError(t, err)
	assert.False(t, cleared)

	_, err = a.ClearGameOverride("nope", "sf2")
	assert.True(t, errors.Is(err, ErrUnknownSystem))
	assert.True(t, errors.Is(a.SetGameOverride("nope", "sf2", viewport.Override{}), ErrUnknownSystem))
}

func TestValidateDuplicateNames(t *testing.T) {
	a := NewAppSettings(afero.NewMemMapFs(), "/cfg")
	a.Systems = []SystemConfig{{Name: "x"}, {Name: "x"}}

	assert.Error(t, a.Validate())
}

func TestSaveIfChanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewAppSettings(fs, "/cfg")
	a.AutoSaveEnabled = false
	require.NoError(t, a.AddSystem(SystemConfig{Name: "FBNeo"}))

	require.NoError(t, a.SaveIfChanged(false))
	assert.True(t, a.Changed())

	require.NoError(t, a.SaveIfChanged(true))
	assert.False(t, a.Changed())
	content, _ := afero.ReadFile(fs, "/cfg/settings.json")
	assert.Contains(t, string(content), `"name": "FBNeo"`)
}

func TestResolveFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.Equal(t, DefaultFolder(), ResolveFolder(fs, "/portable"))

	require.NoError(t, afero.WriteFile(fs, "/portable/settings.json", []byte("{}"), 0o644))
	assert.Equal(t, "/portable", ResolveFolder(fs, "/portable"))
}
