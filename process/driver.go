package process

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotool/resolution-override-tool/db"
	"github.com/rotool/resolution-override-tool/fileio"
	"github.com/rotool/resolution-override-tool/settings"
	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const MAX_SUGGESTIONS = 3

// Selection picks the games of a batch: every ROM of the system, or one game.
type Selection struct {
	Game string
}

func AllGames() Selection {
	return Selection{}
}

func SingleGame(game string) Selection {
	return Selection{Game: strings.TrimSpace(game)}
}

func (s Selection) IsAll() bool {
	return s.Game == ""
}

func (s Selection) String() string {
	if s.IsAll() {
		return "all games"
	}
	return s.Game
}

// CatalogLoader is satisfied by db.CatalogManager.
type CatalogLoader interface {
	Load(path string) (*db.Catalog, error)
}

// Driver runs batches of config writes and removals. Games are processed one
// at a time and a failing game never stops the batch.
type Driver struct {
	fs       afero.Fs
	logger   *zap.SugaredLogger
	progress db.ProgressUpdater
}

func NewDriver(fs afero.Fs, l *zap.SugaredLogger, progress db.ProgressUpdater) *Driver {
	return &Driver{fs: fs, logger: l, progress: progress}
}

// Apply resolves and writes the config of every selected game. The error is
// only set when the batch could not run or ctx was cancelled; per game
// problems are in the report.
func (d *Driver) Apply(ctx context.Context, system settings.SystemConfig, catalog *db.Catalog, sel Selection) (*Report, error) {
	report := &Report{System: system.Name}

	games, err := d.selectForApply(system, catalog, sel, report)
	if err != nil {
		report.Err = err
		return report, err
	}
	d.ensureOutputFolder(system)

	d.logger.Infof("Processing %d games of %v", len(games), system.Name)
	for i, game := range games {
		if err := ctx.Err(); err != nil {
			d.logger.Warnf("Processing of %v stopped after %d of %d games", system.Name, i, len(games))
			return report, err
		}
		db.UpdateProgress(d.progress, i+1, len(games), game)
		report.add(d.applyGame(system, catalog, game))
	}

	d.logger.Infof("Processing complete: %d written, %d skipped, %d failed",
		report.Count(OUTCOME_WRITTEN), report.Skipped(), report.Failed())
	return report, nil
}

func (d *Driver) applyGame(system settings.SystemConfig, catalog *db.Catalog, game string) ItemResult {
	entry, _ := lookup(catalog, game)
	vp, err := viewport.Resolve(game,
		system.GameOverride(game),
		system.Override(),
		viewport.Native(entry.Width, entry.Height),
	)
	if err != nil {
		d.logger.Infof("Skipped %v: %v", game, err)
		return newItemResult(game, "", OUTCOME_SKIPPED, err)
	}

	path := fileio.ConfigPath(system, game)
	if err := fileio.WriteViewportConfig(d.fs, path, vp); err != nil {
		d.logger.Errorf("Failed to write config for %v - %v", game, err)
		return newItemResult(game, path, OUTCOME_FAILED, err)
	}

	d.logger.Infof("Wrote config for %v: %v", game, vp)
	result := newItemResult(game, path, OUTCOME_WRITTEN, nil)
	result.Viewport = vp
	return result
}

// selectForApply lists the games of sel. An unknown single game is recorded
// in report as not found, with suggestions, and nothing is returned.
func (d *Driver) selectForApply(system settings.SystemConfig, catalog *db.Catalog, sel Selection, report *Report) ([]string, error) {
	if sel.IsAll() {
		return db.ScanRomFolder(d.fs, system.RomFolder, system.RomExtension)
	}

	if _, ok := lookup(catalog, sel.Game); ok {
		return []string{sel.Game}, nil
	}
	if _, ok := system.GameOverrides[sel.Game]; ok {
		return []string{sel.Game}, nil
	}
	if roms, err := db.ScanRomFolder(d.fs, system.RomFolder, system.RomExtension); err == nil {
		if i := sort.SearchStrings(roms, sel.Game); i < len(roms) && roms[i] == sel.Game {
			return []string{sel.Game}, nil
		}
	}

	notFound := &db.NotFoundError{Path: sel.Game}
	if catalog != nil {
		notFound.Suggestions = db.Suggest(catalog, sel.Game, MAX_SUGGESTIONS)
	}
	d.logger.Warnf("Unknown game %v", notFound)
	report.add(newItemResult(sel.Game, "", OUTCOME_FAILED, notFound))
	return nil, nil
}

func (d *Driver) ensureOutputFolder(system settings.SystemConfig) {
	folder := system.OutputFolder()
	if folder == "" {
		return
	}
	if err := d.fs.MkdirAll(folder, 0o755); err != nil {
		d.logger.Warnf("failed to create output folder [%v] - %v", folder, err)
	}
}

// Remove deletes the configs of the selected games.
func (d *Driver) Remove(ctx context.Context, system settings.SystemConfig, sel Selection) (*Report, error) {
	report := &Report{System: system.Name}

	games := []string{sel.Game}
	if sel.IsAll() {
		var err error
		games, err = db.ScanRomFolder(d.fs, system.RomFolder, system.RomExtension)
		if err != nil {
			report.Err = err
			return report, err
		}
	}

	for i, game := range games {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		db.UpdateProgress(d.progress, i+1, len(games), game)

		path := fileio.ConfigPath(system, game)
		existed, err := fileio.DeleteConfig(d.fs, path)
		switch {
		case err != nil:
			d.logger.Errorf("Failed to remove config for %v - %v", game, err)
			report.add(newItemResult(game, path, OUTCOME_FAILED, err))
		case existed:
			d.logger.Infof("Removed config for %v", game)
			report.add(newItemResult(game, path, OUTCOME_DELETED, nil))
		default:
			report.add(newItemResult(game, path, OUTCOME_UNCHANGED, nil))
		}
	}
	return report, nil
}

// RemoveAll strips the viewport keys from every config in the output folder,
// including configs the tool did not write. Files left without keys are
// deleted when deleteEmpty is set.
func (d *Driver) RemoveAll(ctx context.Context, system settings.SystemConfig, deleteEmpty bool) (*Report, error) {
	report := &Report{System: system.Name}
	folder := system.OutputFolder()

	suffix := db.NormalizeRomExtension(system.RomExtension) + fileio.CONFIG_EXTENSION
	configs, err := fileio.ListConfigs(d.fs, folder, suffix)
	if err != nil {
		report.Err = err
		return report, err
	}
	d.logger.Infof("Found %d config files in %v", len(configs), folder)

	for i, path := range configs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		game := strings.TrimSuffix(filepath.Base(path), suffix)
		db.UpdateProgress(d.progress, i+1, len(configs), game)

		result, err := fileio.StripViewportKeys(d.fs, path, deleteEmpty)
		switch {
		case err != nil:
			d.logger.Errorf("Failed to remove overrides from %v - %v", path, err)
			report.add(newItemResult(game, path, OUTCOME_FAILED, err))
		case result.Removed:
			d.logger.Infof("Removed viewport overrides from %v (file deleted: %v)", filepath.Base(path), result.Deleted)
			report.add(newItemResult(game, path, OUTCOME_DELETED, nil))
		default:
			report.add(newItemResult(game, path, OUTCOME_UNCHANGED, nil))
		}
	}
	return report, nil
}

// ApplySystems runs Apply on every system. A system whose catalog or ROM
// folder is unusable gets a report carrying the error and the remaining
// systems still run.
func (d *Driver) ApplySystems(ctx context.Context, systems []settings.SystemConfig, loader CatalogLoader) ([]*Report, error) {
	return d.eachSystem(ctx, systems, func(system settings.SystemConfig) (*Report, error) {
		catalog, err := loader.Load(system.DatFile)
		if err != nil {
			return &Report{System: system.Name, Err: err}, err
		}
		return d.Apply(ctx, system, catalog, AllGames())
	})
}

// RemoveAllSystems runs RemoveAll on the output folder of every system.
func (d *Driver) RemoveAllSystems(ctx context.Context, systems []settings.SystemConfig, deleteEmpty bool) ([]*Report, error) {
	return d.eachSystem(ctx, systems, func(system settings.SystemConfig) (*Report, error) {
		return d.RemoveAll(ctx, system, deleteEmpty)
	})
}

func (d *Driver) eachSystem(ctx context.Context, systems []settings.SystemConfig, run func(settings.SystemConfig) (*Report, error)) ([]*Report, error) {
	var reports []*Report
	for _, system := range systems {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := run(system)
		reports = append(reports, report)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return reports, ctxErr
		}
		if err != nil {
			d.logger.Errorf("Processing of %v failed - %v", system.Name, err)
		}
	}
	return reports, nil
}

func lookup(catalog *db.Catalog, game string) (db.GameEntry, bool) {
	if catalog == nil {
		return db.GameEntry{Name: game}, false
	}
	return catalog.Get(game)
}
