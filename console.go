package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jedib0t/go-pretty/table"
	"github.com/rotool/resolution-override-tool/db"
	"github.com/rotool/resolution-override-tool/fileio"
	"github.com/rotool/resolution-override-tool/process"
	"github.com/rotool/resolution-override-tool/settings"
	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	EXIT_OK      = 0
	EXIT_FAILURE = 1

	ADHOC_SYSTEM_NAME = "ad-hoc"
)

var errUsage = errors.New("usage error")

type options struct {
	system       string
	all          bool
	game         string
	override     string
	gameOverride string
	save         bool
	remove       bool
	removeAll    bool

	add          bool
	dat          string
	roms         string
	export       string
	ext          string
	deleteSystem bool
	systems      bool
	showSettings bool

	list   bool
	filter string

	sources  bool
	download string

	backup    bool
	restore   string
	overwrite bool

	debug bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	o := &options{}
	flags := flag.NewFlagSet("resolution-override-tool", flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&o.system, "system", "", "name of a configured system")
	flags.BoolVar(&o.all, "all", false, "process every configured system")
	flags.StringVar(&o.game, "game", "", "process a single game (ROM name without extension)")
	flags.StringVar(&o.override, "override", "", "system override WIDTH,HEIGHT[,X,Y], empty fields keep the native value")
	flags.StringVar(&o.gameOverride, "game-override", "", "override for the game given with -game, WIDTH,HEIGHT[,X,Y]")
	flags.BoolVar(&o.save, "save", false, "save setting changes even when auto save is off")
	flags.BoolVar(&o.remove, "remove", false, "delete the configs of the selected games")
	flags.BoolVar(&o.removeAll, "remove-all", false, "strip viewport settings from every config in the output folder")

	flags.BoolVar(&o.add, "add", false, "add the system given with -system, -dat and -roms")
	flags.StringVar(&o.dat, "dat", "", "path to the DAT file")
	flags.StringVar(&o.roms, "roms", "", "path to the ROM folder")
	flags.StringVar(&o.export, "export", "", "write configs to this folder instead of the ROM folder")
	flags.StringVar(&o.ext, "ext", "", "ROM file extension (default .zip)")
	flags.BoolVar(&o.deleteSystem, "delete-system", false, "delete the system given with -system")
	flags.BoolVar(&o.systems, "systems", false, "list configured systems")
	flags.BoolVar(&o.showSettings, "show-settings", false, "print the settings file content")

	flags.BoolVar(&o.list, "list", false, "list the games of the system")
	flags.StringVar(&o.filter, "filter", "", "only list games matching this text")

	flags.BoolVar(&o.sources, "sources", false, "list downloadable DAT files")
	flags.StringVar(&o.download, "download", "", "download a DAT file by name (see -sources)")

	flags.BoolVar(&o.backup, "backup", false, "zip all configs of the system output folder")
	flags.StringVar(&o.restore, "restore", "", "restore configs from a backup zip")
	flags.BoolVar(&o.overwrite, "overwrite", false, "overwrite existing configs on restore")

	flags.BoolVar(&o.debug, "debug", false, "debug logging")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, flags.Args())
	}
	if o.gameOverride != "" && o.game == "" {
		return nil, fmt.Errorf("%w: -game-override needs -game", errUsage)
	}
	if o.remove && o.removeAll {
		return nil, fmt.Errorf("%w: use either -remove or -remove-all", errUsage)
	}
	if o.all {
		var conflicts []string
		flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "all", "remove-all", "save", "debug":
			default:
				conflicts = append(conflicts, "-"+f.Name)
			}
		})
		if len(conflicts) > 0 {
			return nil, fmt.Errorf("%w: -all only combines with -remove-all, not %v", errUsage, strings.Join(conflicts, " "))
		}
	}
	return o, nil
}

type Console struct {
	fs          afero.Fs
	settings    *settings.AppSettings
	sugarLogger *zap.SugaredLogger
	out         io.Writer
	client      *http.Client
	progressBar *progressbar.ProgressBar
}

func CreateConsole(fs afero.Fs, appSettings *settings.AppSettings, sugarLogger *zap.SugaredLogger, out io.Writer) *Console {
	return &Console{fs: fs, settings: appSettings, sugarLogger: sugarLogger, out: out, client: http.DefaultClient}
}

// Start runs one command line and returns the process exit code.
func (c *Console) Start(ctx context.Context, args []string) int {
	opts, err := parseFlags(args, c.out)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return EXIT_OK
		}
		fmt.Fprintf(c.out, "%v\n", err)
		return EXIT_FAILURE
	}

	code, err := c.run(ctx, opts)
	if err != nil {
		c.sugarLogger.Errorf("%v", err)
		fmt.Fprintf(c.out, "\nError: %v\n", err)
		code = EXIT_FAILURE
	}

	if saveErr := c.settings.SaveIfChanged(opts.save); saveErr != nil {
		fmt.Fprintf(c.out, "failed to save settings - %v\n", saveErr)
		code = EXIT_FAILURE
	} else if c.settings.Changed() {
		fmt.Fprintf(c.out, "Settings changed but not saved (auto save is off, use -save)\n")
	}
	return code
}

func (c *Console) run(ctx context.Context, opts *options) (int, error) {
	switch {
	case opts.sources:
		c.printSources()
		return EXIT_OK, nil
	case opts.download != "":
		return c.downloadDat(ctx, opts.download)
	case opts.systems:
		c.printSystems()
		return EXIT_OK, nil
	case opts.showSettings:
		fmt.Fprintln(c.out, c.settings.ToJSON())
		return EXIT_OK, nil
	case opts.deleteSystem:
		if opts.system == "" {
			return EXIT_FAILURE, fmt.Errorf("%w: -delete-system needs -system", errUsage)
		}
		if err := c.settings.RemoveSystem(opts.system); err != nil {
			return EXIT_FAILURE, err
		}
		fmt.Fprintf(c.out, "Deleted system %v\n", opts.system)
		return EXIT_OK, nil
	case opts.add:
		return c.addSystem(opts)
	case opts.all:
		return c.processAllSystems(ctx, opts)
	}

	system, saved, err := c.selectSystem(opts)
	if err != nil {
		return EXIT_FAILURE, err
	}
	if err := c.applyOverrideFlags(system, saved, opts); err != nil {
		return EXIT_FAILURE, err
	}

	switch {
	case opts.list:
		return c.listGames(system, opts.filter)
	case opts.backup:
		return c.backupConfigs(system)
	case opts.restore != "":
		return c.restoreConfigs(system, opts.restore, opts.overwrite)
	}
	return c.processSystem(ctx, system, opts)
}

// selectSystem returns the -system entry of the settings, or an unsaved
// system built from -dat and -roms. saved tells which one it is.
func (c *Console) selectSystem(opts *options) (*settings.SystemConfig, bool, error) {
	if opts.system != "" {
		system, ok := c.settings.System(opts.system)
		if !ok {
			return nil, false, fmt.Errorf("%w: %v (see -systems)", settings.ErrUnknownSystem, opts.system)
		}
		return system, true, nil
	}
	if opts.dat != "" && opts.roms != "" {
		return &settings.SystemConfig{
			Name:         ADHOC_SYSTEM_NAME,
			DatFile:      opts.dat,
			RomFolder:    opts.roms,
			ExportFolder: opts.export,
			RomExtension: opts.ext,
		}, false, nil
	}
	if system, ok := c.settings.CurrentSystem(); ok && (opts.list || opts.game != "") {
		return system, true, nil
	}
	return nil, false, fmt.Errorf("%w: choose a system with -system, or give -dat and -roms", errUsage)
}

// applyOverrideFlags stores -override and -game-override on the system. For
// saved systems the change goes through the settings so it can be persisted.
func (c *Console) applyOverrideFlags(system *settings.SystemConfig, saved bool, opts *options) error {
	if opts.override != "" {
		o, err := viewport.Parse(opts.override)
		if err != nil {
			return fmt.Errorf("%w: -override %v", errUsage, err)
		}
		if saved {
			if err := c.settings.SetSystemOverride(system.Name, o); err != nil {
				return err
			}
		} else {
			system.SetOverride(o)
		}
	}

	if opts.gameOverride != "" {
		o, err := viewport.Parse(opts.gameOverride)
		if err != nil {
			return fmt.Errorf("%w: -game-override %v", errUsage, err)
		}
		if saved {
			return c.settings.SetGameOverride(system.Name, opts.game, o)
		}
		if system.GameOverrides == nil {
			system.GameOverrides = map[string]viewport.Override{}
		}
		system.GameOverrides[opts.game] = o
	}
	return nil
}

func (c *Console) addSystem(opts *options) (int, error) {
	if opts.system == "" || opts.dat == "" || opts.roms == "" {
		return EXIT_FAILURE, fmt.Errorf("%w: -add needs -system, -dat and -roms", errUsage)
	}
	system := settings.SystemConfig{
		Name:         opts.system,
		DatFile:      opts.dat,
		RomFolder:    opts.roms,
		ExportFolder: opts.export,
		RomExtension: opts.ext,
	}
	if opts.override != "" {
		o, err := viewport.Parse(opts.override)
		if err != nil {
			return EXIT_FAILURE, fmt.Errorf("%w: -override %v", errUsage, err)
		}
		system.SetOverride(o)
	}
	if err := c.settings.AddSystem(system); err != nil {
		return EXIT_FAILURE, err
	}
	if exists, _ := afero.Exists(c.fs, opts.dat); !exists {
		fmt.Fprintf(c.out, "Warning: DAT file [%v] does not exist yet\n", opts.dat)
	}
	fmt.Fprintf(c.out, "Added system %v\n", system.Name)
	return EXIT_OK, nil
}

func (c *Console) newCatalogManager() (*db.CatalogManager, error) {
	return db.NewCatalogManager(c.settings.BaseFolder(), c.fs, c.sugarLogger)
}

// catalogLoader announces every catalog it loads on the console.
type catalogLoader struct {
	console *Console
	manager *db.CatalogManager
}

func (c *Console) loader(manager *db.CatalogManager) catalogLoader {
	return catalogLoader{console: c, manager: manager}
}

func (l catalogLoader) Load(path string) (*db.Catalog, error) {
	catalog, err := l.manager.Load(path)
	if err != nil {
		return nil, err
	}
	c := l.console
	fmt.Fprintf(c.out, "Loaded %d games from %v (%d with resolution)\n", catalog.Len(), path, catalog.WithResolution())
	if dangling := catalog.Unresolved(); len(dangling) > 0 {
		fmt.Fprintf(c.out, "Warning: %d clones name a parent that is not in the catalog\n", len(dangling))
		c.sugarLogger.Debugf("Clones without parent in %v: %v", path, strings.Join(dangling, ", "))
	}
	return catalog, nil
}

func (c *Console) newDriver() *process.Driver {
	return process.NewDriver(c.fs, c.sugarLogger, c)
}

func (c *Console) processSystem(ctx context.Context, system *settings.SystemConfig, opts *options) (int, error) {
	sel := process.AllGames()
	if opts.game != "" {
		sel = process.SingleGame(opts.game)
	}
	driver := c.newDriver()

	var report *process.Report
	var err error
	switch {
	case opts.removeAll:
		fmt.Fprintf(c.out, "Removing viewport overrides from all configs of %v\n", system.Name)
		c.progressBar = c.newProgressBar()
		report, err = driver.RemoveAll(ctx, *system, c.settings.DeleteEmptyConfigs)
	case opts.remove:
		fmt.Fprintf(c.out, "Removing configs of %v (%v)\n", system.Name, sel)
		c.progressBar = c.newProgressBar()
		report, err = driver.Remove(ctx, *system, sel)
	default:
		manager, mErr := c.newCatalogManager()
		if mErr != nil {
			return EXIT_FAILURE, mErr
		}
		defer manager.Close()

		catalog, lErr := c.loader(manager).Load(system.DatFile)
		if lErr != nil {
			return EXIT_FAILURE, lErr
		}
		c.progressBar = c.newProgressBar()
		report, err = driver.Apply(ctx, *system, catalog, sel)
	}
	c.finishProgress()

	if report != nil {
		c.printReports([]*process.Report{report})
	}
	if err != nil {
		return EXIT_FAILURE, err
	}
	return exitCode([]*process.Report{report}), nil
}

func (c *Console) processAllSystems(ctx context.Context, opts *options) (int, error) {
	if len(c.settings.Systems) == 0 {
		return EXIT_FAILURE, fmt.Errorf("%w: no systems configured (see -add)", errUsage)
	}
	driver := c.newDriver()

	var reports []*process.Report
	var err error
	if opts.removeAll {
		fmt.Fprintf(c.out, "Removing viewport overrides from the configs of %d systems\n", len(c.settings.Systems))
		c.progressBar = c.newProgressBar()
		reports, err = driver.RemoveAllSystems(ctx, c.settings.Systems, c.settings.DeleteEmptyConfigs)
	} else {
		manager, mErr := c.newCatalogManager()
		if mErr != nil {
			return EXIT_FAILURE, mErr
		}
		defer manager.Close()

		c.progressBar = c.newProgressBar()
		reports, err = driver.ApplySystems(ctx, c.settings.Systems, c.loader(manager))
	}
	c.finishProgress()

	c.printReports(reports)
	if err != nil {
		return EXIT_FAILURE, err
	}
	return exitCode(reports), nil
}

func exitCode(reports []*process.Report) int {
	for _, report := range reports {
		if report.HasFailures() {
			return EXIT_FAILURE
		}
	}
	return EXIT_OK
}

func (c *Console) printReports(reports []*process.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"System", "Written", "Deleted", "Unchanged", "Skipped", "Failed"})
	total := &process.Report{}
	for _, report := range reports {
		if report.Err != nil {
			t.AppendRow(table.Row{report.System, "-", "-", "-", "-", report.Err.Error()})
			continue
		}
		t.AppendRow(table.Row{
			report.System,
			report.Count(process.OUTCOME_WRITTEN),
			report.Count(process.OUTCOME_DELETED),
			report.Count(process.OUTCOME_UNCHANGED),
			report.Skipped(),
			report.Failed(),
		})
		total.Items = append(total.Items, report.Items...)
	}
	t.AppendFooter(table.Row{"Total", total.Count(process.OUTCOME_WRITTEN), total.Count(process.OUTCOME_DELETED),
		total.Count(process.OUTCOME_UNCHANGED), total.Skipped(), total.Failed()})
	fmt.Fprintln(c.out)
	t.Render()

	problems := total.Problems()
	if len(problems) == 0 {
		return
	}
	fmt.Fprint(c.out, "\nSkipped and failed games:\n\n")
	p := table.NewWriter()
	p.SetOutputMirror(c.out)
	p.SetStyle(table.StyleColoredBright)
	p.AppendHeader(table.Row{"#", "Game", "Outcome", "Kind", "Reason"})
	for i, item := range problems {
		p.AppendRow(table.Row{i + 1, item.Game, item.Outcome, item.Kind, item.Err})
	}
	p.AppendFooter(table.Row{"", "", "", "Total", len(problems)})
	p.Render()
}

func (c *Console) printSystems() {
	if len(c.settings.Systems) == 0 {
		fmt.Fprintln(c.out, "No systems configured, add one with -add -system NAME -dat FILE -roms FOLDER")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"", "Name", "DAT file", "ROM folder", "Output folder", "Override", "Game overrides"})
	for i, system := range c.settings.Systems {
		current := ""
		if i == c.settings.CurrentSystemIdx {
			current = "*"
		}
		override := system.Override().String()
		if override == "" {
			override = "native"
		}
		t.AppendRow(table.Row{current, system.Name, system.DatFile, system.RomFolder, system.OutputFolder(), override, len(system.GameOverrides)})
	}
	t.Render()
}

func (c *Console) listGames(system *settings.SystemConfig, filter string) (int, error) {
	manager, err := c.newCatalogManager()
	if err != nil {
		return EXIT_FAILURE, err
	}
	defer manager.Close()

	catalog, err := c.loader(manager).Load(system.DatFile)
	if err != nil {
		return EXIT_FAILURE, err
	}
	roms, err := db.ScanRomFolder(c.fs, system.RomFolder, system.RomExtension)
	if err != nil {
		c.sugarLogger.Warnf("listing without ROM presence - %v", err)
	}

	statuses := c.newDriver().GameStatuses(*system, db.Search(catalog, filter), roms)
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Game", "Description", "Year", "Manufacturer", "Orientation", "Screen", "Clone of", "Clones",
		"Native", "ROM", "Config", "Viewport"})
	for _, status := range statuses {
		entry := status.Entry
		native := "unknown"
		if entry.HasResolution() {
			native = fmt.Sprintf("%dx%d", entry.Width, entry.Height)
		}
		cloneOf := entry.CloneOf
		if entry.IsClone() && !entry.CloneResolved {
			cloneOf += " (missing)"
		}
		resolved := "unresolved"
		if status.Err == nil {
			resolved = status.Viewport.String()
			if status.HasOverride {
				resolved += " (game override)"
			}
		}
		t.AppendRow(table.Row{entry.Name, entry.Description, entry.Year, entry.Manufacturer, entry.Orientation, entry.ScreenType,
			cloneOf, len(catalog.Clones(entry.Name)), native, yesNo(status.HasRom), configState(status), resolved})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "", "", "Total", len(statuses)})
	t.Render()
	return EXIT_OK, nil
}

// configState is what the game list shows for the config file on disk.
func configState(status process.GameStatus) string {
	switch {
	case !status.HasConfig:
		return "no"
	case status.ConfigViewport != nil:
		return status.ConfigViewport.String()
	case status.ConfigHasViewport:
		return "invalid viewport"
	default:
		return "no viewport"
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (c *Console) printSources() {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"#", "Name", "File", "URL"})
	for i, source := range db.DatSources() {
		t.AppendRow(table.Row{i + 1, source.Name, source.Filename, source.URL})
	}
	t.Render()
}

func (c *Console) downloadDat(ctx context.Context, name string) (int, error) {
	source, ok := db.FindDatSource(name)
	if !ok {
		var names []string
		for _, s := range db.DatSources() {
			names = append(names, s.Name)
		}
		return EXIT_FAILURE, fmt.Errorf("%w: unknown DAT source %v, available: %v", errUsage, name, strings.Join(names, ", "))
	}

	fmt.Fprintf(c.out, "Downloading %v\n", source.Name)
	result, err := db.NewDownloader(c.client, c.fs, c.sugarLogger).Download(ctx, source, c.settings.DatFolder)
	if err != nil {
		return EXIT_FAILURE, err
	}
	if result.KeptExisting {
		fmt.Fprintf(c.out, "Kept [%v], it is newer (version %v)\n", result.Path, result.Version)
	} else {
		fmt.Fprintf(c.out, "Saved [%v] (version %v)\n", result.Path, result.Version)
	}
	return EXIT_OK, nil
}

func (c *Console) backupConfigs(system *settings.SystemConfig) (int, error) {
	path, count, err := fileio.BackupConfigs(c.fs, system.OutputFolder(), "")
	if err != nil {
		return EXIT_FAILURE, err
	}
	fmt.Fprintf(c.out, "Backed up %d config files to [%v]\n", count, path)
	return EXIT_OK, nil
}

func (c *Console) restoreConfigs(system *settings.SystemConfig, backupPath string, overwrite bool) (int, error) {
	result, err := fileio.RestoreConfigs(c.fs, system.OutputFolder(), backupPath, overwrite)
	if err != nil {
		return EXIT_FAILURE, err
	}
	fmt.Fprintf(c.out, "Restored %d config files, skipped %d existing", len(result.Restored), len(result.Skipped))
	if len(result.Rejected) > 0 {
		fmt.Fprintf(c.out, ", rejected %d: %v", len(result.Rejected), strings.Join(result.Rejected, ", "))
	}
	fmt.Fprintln(c.out)
	return EXIT_OK, nil
}

func (c *Console) UpdateProgress(curr int, total int, message string) {
	if c.progressBar == nil {
		return
	}
	c.progressBar.ChangeMax(total)
	_ = c.progressBar.Set(curr)
	c.progressBar.Describe(message)
}

func (c *Console) newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *Console) finishProgress() {
	if c.progressBar != nil {
		_ = c.progressBar.Finish()
		c.progressBar = nil
	}
}
