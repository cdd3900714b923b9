package process

import (
	"sort"

	"github.com/rotool/resolution-override-tool/db"
	"github.com/rotool/resolution-override-tool/fileio"
	"github.com/rotool/resolution-override-tool/settings"
	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/spf13/afero"
)

// GameStatus is what the game list shows for one catalog entry.
type GameStatus struct {
	Entry       db.GameEntry
	HasRom      bool
	HasConfig   bool
	// ConfigHasViewport is set when the config file carries viewport keys,
	// ConfigViewport when those keys form a valid viewport.
	ConfigHasViewport bool
	ConfigViewport    *viewport.Viewport
	HasOverride       bool
	// Viewport is valid when Err is nil.
	Viewport viewport.Viewport
	Err      error
}

// GameStatuses resolves entries against system without writing anything.
// roms must be sorted, as returned by db.ScanRomFolder.
func (d *Driver) GameStatuses(system settings.SystemConfig, entries []db.GameEntry, roms []string) []GameStatus {
	result := make([]GameStatus, 0, len(entries))
	for _, entry := range entries {
		status := GameStatus{Entry: entry}

		i := sort.SearchStrings(roms, entry.Name)
		status.HasRom = i < len(roms) && roms[i] == entry.Name

		path := fileio.ConfigPath(system, entry.Name)
		status.HasConfig, _ = afero.Exists(d.fs, path)
		if status.HasConfig {
			d.readConfigViewport(path, &status)
		}

		gameOverride := system.GameOverride(entry.Name)
		status.HasOverride = !gameOverride.IsEmpty()
		status.Viewport, status.Err = viewport.Resolve(entry.Name,
			gameOverride,
			system.Override(),
			viewport.Native(entry.Width, entry.Height),
		)
		result = append(result, status)
	}
	return result
}

func (d *Driver) readConfigViewport(path string, status *GameStatus) {
	config, err := fileio.ReadConfigFile(d.fs, path)
	if err != nil {
		d.logger.Warnf("failed to read config [%v] - %v", path, err)
		return
	}
	if !config.HasViewport() {
		return
	}
	status.ConfigHasViewport = true
	if vp, ok := config.Viewport(); ok {
		status.ConfigViewport = &vp
	}
}
