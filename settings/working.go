package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

func GetWorkingFolder() (string, error) {
	// Detect executable own dir as working folder
	exePath, exeErr := os.Executable()
	if exeErr != nil {
		return "", exeErr
	}

	workingFolder := filepath.Dir(exePath)

	// Adjust for MacOS
	if runtime.GOOS == "darwin" {
		if strings.Contains(workingFolder, ".app") {
			appIndex := strings.Index(workingFolder, ".app")
			sepIndex := strings.LastIndex(workingFolder[:appIndex], string(os.PathSeparator))
			workingFolder = workingFolder[:sepIndex]
		}
	}

	return workingFolder, nil
}

// DefaultFolder is the per user settings folder.
func DefaultFolder() string {
	return filepath.Join(xdg.ConfigHome, SETTINGS_DIR)
}

// ResolveFolder picks the settings folder. A settings file next to the
// executable (portable install) wins over the per user folder.
func ResolveFolder(fs afero.Fs, workingFolder string) string {
	if workingFolder != "" {
		if exists, _ := afero.Exists(fs, filepath.Join(workingFolder, SETTINGS_FILENAME)); exists {
			return workingFolder
		}
	}
	return DefaultFolder()
}
