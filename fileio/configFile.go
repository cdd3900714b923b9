package fileio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/rotool/resolution-override-tool/db"
	"github.com/rotool/resolution-override-tool/settings"
	"github.com/rotool/resolution-override-tool/viewport"
	"github.com/spf13/afero"
)

const (
	CONFIG_EXTENSION = ".cfg"

	KEY_ASPECT_RATIO_INDEX = "aspect_ratio_index"
	KEY_VIEWPORT_X         = "custom_viewport_x"
	KEY_VIEWPORT_Y         = "custom_viewport_y"
	KEY_VIEWPORT_WIDTH     = "custom_viewport_width"
	KEY_VIEWPORT_HEIGHT    = "custom_viewport_height"

	// RetroArch "Custom" aspect ratio, required for custom_viewport_* to apply.
	ASPECT_RATIO_CUSTOM = "23"
)

var viewportKeys = []string{
	KEY_ASPECT_RATIO_INDEX,
	KEY_VIEWPORT_X,
	KEY_VIEWPORT_Y,
	KEY_VIEWPORT_WIDTH,
	KEY_VIEWPORT_HEIGHT,
}

// IOError is a failed write or delete of a config file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %v [%v] - %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ConfigFileName is the per game override file RetroArch looks up, e.g. sf2.zip.cfg.
func ConfigFileName(rom string, romExtension string) string {
	return rom + db.NormalizeRomExtension(romExtension) + CONFIG_EXTENSION
}

// ConfigPath is the config file of rom inside the system output folder.
func ConfigPath(system settings.SystemConfig, rom string) string {
	return filepath.Join(system.OutputFolder(), ConfigFileName(rom, system.RomExtension))
}

// EncodeViewport renders the five config lines of vp.
func EncodeViewport(vp viewport.Viewport) []byte {
	values := []string{
		ASPECT_RATIO_CUSTOM,
		strconv.Itoa(vp.X),
		strconv.Itoa(vp.Y),
		strconv.Itoa(vp.Width),
		strconv.Itoa(vp.Height),
	}
	buf := bytes.Buffer{}
	for i, key := range viewportKeys {
		fmt.Fprintf(&buf, "%v = \"%v\"\n", key, values[i])
	}
	return buf.Bytes()
}

// WriteViewportConfig replaces the file at path with the config of vp.
func WriteViewportConfig(fs afero.Fs, path string, vp viewport.Viewport) error {
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	_, err = file.Write(EncodeViewport(vp))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// DeleteConfig removes the file at path. A missing file is not an error,
// existed tells whether anything was removed.
func DeleteConfig(fs afero.Fs, path string) (existed bool, err error) {
	err = fs.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &IOError{Op: "delete", Path: path, Err: err}
}

// Config is a read only view of a RetroArch config file.
type Config struct {
	props *properties.Properties
}

func parseConfig(buf []byte) (*Config, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(buf)
	if err != nil {
		return nil, err
	}
	return &Config{props: p}, nil
}

// ReadConfigFile loads any RetroArch config. Comments are ignored.
func ReadConfigFile(fs afero.Fs, path string) (*Config, error) {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &db.NotFoundError{Path: path, Err: err}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	config, err := parseConfig(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read config [%v]: %w", path, err)
	}
	return config, nil
}

// Keys in file order.
func (c *Config) Keys() []string {
	return c.props.Keys()
}

func (c *Config) Len() int {
	return c.props.Len()
}

// Get returns the value of key without the surrounding quotes.
func (c *Config) Get(key string) (string, bool) {
	value, ok := c.props.Get(key)
	if !ok {
		return "", false
	}
	return strings.Trim(value, `"`), true
}

// HasViewport reports whether any viewport key is set.
func (c *Config) HasViewport() bool {
	for _, key := range viewportKeys {
		if _, ok := c.props.Get(key); ok {
			return true
		}
	}
	return false
}

// Viewport reads back a custom viewport, ok is false unless width and height
// are both valid.
func (c *Config) Viewport() (vp viewport.Viewport, ok bool) {
	fields := []*int{&vp.X, &vp.Y, &vp.Width, &vp.Height}
	for i, key := range viewportKeys[1:] {
		value, found := c.Get(key)
		if !found {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return viewport.Viewport{}, false
		}
		*fields[i] = n
	}
	return vp, vp.Width > 0 && vp.Height > 0
}

// StripResult describes what StripViewportKeys did to a file.
type StripResult struct {
	Removed bool
	Empty   bool
	Deleted bool
}

// StripViewportKeys drops the viewport lines of a config and keeps every
// other line as is. When nothing else is left the file is deleted, or
// truncated when deleteIfEmpty is false.
func StripViewportKeys(fs afero.Fs, path string, deleteIfEmpty bool) (StripResult, error) {
	result := StripResult{}
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, &db.NotFoundError{Path: path, Err: err}
		}
		return result, &IOError{Op: "read", Path: path, Err: err}
	}

	kept := bytes.Buffer{}
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := scanner.Text()
		if isViewportLine(line) {
			result.Removed = true
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return result, &IOError{Op: "read", Path: path, Err: err}
	}
	if !result.Removed {
		return result, nil
	}

	remaining, err := parseConfig(kept.Bytes())
	if err != nil {
		return result, fmt.Errorf("failed to read config [%v]: %w", path, err)
	}
	result.Empty = remaining.Len() == 0

	if result.Empty && deleteIfEmpty {
		if _, err := DeleteConfig(fs, path); err != nil {
			return result, err
		}
		result.Deleted = true
		return result, nil
	}
	if result.Empty {
		kept.Reset()
	}
	if err := afero.WriteFile(fs, path, kept.Bytes(), 0o644); err != nil {
		return result, &IOError{Op: "write", Path: path, Err: err}
	}
	return result, nil
}

func isViewportLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	key, _, found := strings.Cut(line, "=")
	if !found {
		return false
	}
	key = strings.TrimSpace(key)
	for _, k := range viewportKeys {
		if key == k {
			return true
		}
	}
	return false
}
