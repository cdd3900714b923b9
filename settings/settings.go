package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	SETTINGS_DIR      = "resolution-override-tool"
	SETTINGS_FILENAME = "settings.json"
	DAT_FOLDER        = "dats"
	ROT_VERSION       = "1.1.0"
)

var (
	ErrUnknownSystem   = errors.New("unknown system")
	ErrDuplicateSystem = errors.New("system already exists")

	validate = validator.New()
)

// SystemConfig is one emulated system: where its catalog and ROMs live and
// which overrides apply to it. The flat override_* keys keep settings files
// written by older releases readable.
type SystemConfig struct {
	Name           string                       `json:"name" validate:"required"`
	DatFile        string                       `json:"dat_file"`
	RomFolder      string                       `json:"rom_folder"`
	ExportFolder   string                       `json:"export_folder"`
	RomExtension   string                       `json:"rom_extension,omitempty"`
	OverrideWidth  *int                         `json:"override_width" validate:"omitempty,gt=0"`
	OverrideHeight *int                         `json:"override_height" validate:"omitempty,gt=0"`
	OverrideX      *int                         `json:"override_x"`
	OverrideY      *int                         `json:"override_y"`
	GameOverrides  map[string]viewport.Override `json:"game_overrides,omitempty" validate:"omitempty,dive"`
}

// Override returns the system wide override layer.
func (s SystemConfig) Override() viewport.Override {
	return viewport.Override{
		Width:  s.OverrideWidth,
		Height: s.OverrideHeight,
		X:      s.OverrideX,
		Y:      s.OverrideY,
	}
}

func (s *SystemConfig) SetOverride(o viewport.Override) {
	s.OverrideWidth = o.Width
	s.OverrideHeight = o.Height
	s.OverrideX = o.X
	s.OverrideY = o.Y
}

// GameOverride returns the override layer of a single game, empty if none.
func (s SystemConfig) GameOverride(game string) viewport.Override {
	return s.GameOverrides[game]
}

// OutputFolder is where configs are written: the export folder when set,
// otherwise next to the ROMs.
func (s SystemConfig) OutputFolder() string {
	if strings.TrimSpace(s.ExportFolder) != "" {
		return s.ExportFolder
	}
	return s.RomFolder
}

// Setting of the application
type AppSettings struct {
	baseFolder string
	fs         afero.Fs
	dirty      bool
	// Unmarshalled from the JSON file
	Systems            []SystemConfig `json:"systems" validate:"unique=Name,dive"`
	CurrentSystemIdx   int            `json:"current_system_idx"`
	AutoSaveEnabled    bool           `json:"auto_save_enabled"`
	Debug              bool           `json:"debug"`
	DatFolder          string         `json:"dat_folder"`
	DeleteEmptyConfigs bool           `json:"delete_empty_configs"`
}

// Constructor for settings
func NewAppSettings(fs afero.Fs, baseFolder string) *AppSettings {
	a := AppSettings{fs: fs, baseFolder: baseFolder}
	if err := fs.MkdirAll(baseFolder, 0o750); err != nil {
		zap.S().Warnf("failed to create settings folder [%v] - %v", baseFolder, err)
	}
	a.read()
	return &a
}

// BaseFolder holds the settings file, the log and the catalog cache.
func (a *AppSettings) BaseFolder() string {
	return a.baseFolder
}

// Get the settings file path
func (a *AppSettings) getPath() string {
	return filepath.Join(a.baseFolder, SETTINGS_FILENAME)
}

// Read the file
func (a *AppSettings) read() {
	buf, bufErr := afero.ReadFile(a.fs, a.getPath())
	if bufErr == nil {
		bufErr = a.Load(buf)
	}

	if bufErr != nil {
		zap.S().Warnf("Missing or corrupted config file, creating a new one.")
		a.defaults()
		if err := a.Save(); err != nil {
			zap.S().Warnf("failed to save settings - %v", err)
		}
		return
	}

	if err := a.Validate(); err != nil {
		zap.S().Warnf("settings file [%v] has invalid entries - %v", a.getPath(), err)
	}
}

// Fill the structure with default values
func (a *AppSettings) defaults() {
	a.Systems = []SystemConfig{}
	a.CurrentSystemIdx = 0
	a.AutoSaveEnabled = true
	a.Debug = false
	a.DatFolder = filepath.Join(a.baseFolder, DAT_FOLDER)
	a.DeleteEmptyConfigs = true
}

// Save writes the settings file.
func (a *AppSettings) Save() error {
	jsonBytes, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(a.fs, a.getPath(), jsonBytes, 0o644); err != nil {
		return fmt.Errorf("failed to save settings [%v]: %w", a.getPath(), err)
	}
	a.dirty = false
	return nil
}

// SaveIfChanged saves pending changes when forced or when auto save is on.
func (a *AppSettings) SaveIfChanged(force bool) error {
	if !a.dirty || !(force || a.AutoSaveEnabled) {
		return nil
	}
	return a.Save()
}

func (a *AppSettings) Changed() bool {
	return a.dirty
}

// Return setting as JSON
func (a *AppSettings) ToJSON() string {
	jsonBytes, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return ""
	}
	return string(jsonBytes)
}

// Load a JSON payload
func (a *AppSettings) Load(payload []byte) error {
	loaded := AppSettings{AutoSaveEnabled: true, DeleteEmptyConfigs: true}
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}

	a.Systems = loaded.Systems
	if a.Systems == nil {
		a.Systems = []SystemConfig{}
	}
	a.CurrentSystemIdx = loaded.CurrentSystemIdx
	a.AutoSaveEnabled = loaded.AutoSaveEnabled
	a.Debug = loaded.Debug
	a.DatFolder = loaded.DatFolder
	if a.DatFolder == "" {
		a.DatFolder = filepath.Join(a.baseFolder, DAT_FOLDER)
	}
	a.DeleteEmptyConfigs = loaded.DeleteEmptyConfigs
	a.clampCurrent()
	return nil
}

func (a *AppSettings) clampCurrent() {
	switch {
	case len(a.Systems) == 0 || a.CurrentSystemIdx < 0:
		a.CurrentSystemIdx = 0
	case a.CurrentSystemIdx >= len(a.Systems):
		a.CurrentSystemIdx = len(a.Systems) - 1
	}
}

// Validate checks every system, including that names are unique.
func (a *AppSettings) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// AddSystem appends a new system and makes it the current one.
func (a *AppSettings) AddSystem(system SystemConfig) error {
	system.Name = strings.TrimSpace(system.Name)
	if err := validate.Struct(system); err != nil {
		return fmt.Errorf("invalid system: %w", err)
	}
	if _, ok := a.System(system.Name); ok {
		return fmt.Errorf("%w: %v", ErrDuplicateSystem, system.Name)
	}
	a.Systems = append(a.Systems, system)
	a.CurrentSystemIdx = len(a.Systems) - 1
	a.dirty = true
	return nil
}

func (a *AppSettings) RemoveSystem(name string) error {
	for i := range a.Systems {
		if a.Systems[i].Name == name {
			a.Systems = append(a.Systems[:i], a.Systems[i+1:]...)
			if a.CurrentSystemIdx > i {
				a.CurrentSystemIdx--
			}
			a.clampCurrent()
			a.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrUnknownSystem, name)
}

// System looks a system up by name. The pointer stays valid until the
// systems list is modified.
func (a *AppSettings) System(name string) (*SystemConfig, bool) {
	for i := range a.Systems {
		if a.Systems[i].Name == name {
			return &a.Systems[i], true
		}
	}
	return nil, false
}

func (a *AppSettings) CurrentSystem() (*SystemConfig, bool) {
	if a.CurrentSystemIdx < 0 || a.CurrentSystemIdx >= len(a.Systems) {
		return nil, false
	}
	return &a.Systems[a.CurrentSystemIdx], true
}

func (a *AppSettings) SetSystemOverride(name string, o viewport.Override) error {
	system, ok := a.System(name)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownSystem, name)
	}
	if err := o.Validate(); err != nil {
		return err
	}
	system.SetOverride(o)
	a.dirty = true
	return nil
}

// SetGameOverride stores the override of one game, replacing any earlier one.
// An empty override clears it.
func (a *AppSettings) SetGameOverride(name string, game string, o viewport.Override) error {
	system, ok := a.System(name)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownSystem, name)
	}
	if o.IsEmpty() {
		_, err := a.ClearGameOverride(name, game)
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if system.GameOverrides == nil {
		system.GameOverrides = map[string]viewport.Override{}
	}
	system.GameOverrides[game] = o
	a.dirty = true
	return nil
}

// ClearGameOverride reports whether the game had an override.
func (a *AppSettings) ClearGameOverride(name string, game string) (bool, error) {
	system, ok := a.System(name)
	if !ok {
		return false, fmt.Errorf("%w: %v", ErrUnknownSystem, name)
	}
	if _, exists := system.GameOverrides[game]; !exists {
		return false, nil
	}
	delete(system.GameOverrides, game)
	a.dirty = true
	return true, nil
}
