package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rotool/resolution-override-tool/logger"
	"github.com/rotool/resolution-override-tool/settings"
	"github.com/spf13/afero"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := afero.NewOsFs()

	workingFolder, err := settings.GetWorkingFolder()
	if err != nil {
		fmt.Printf("failed to get working directory - %v\n", err)
	}
	baseFolder := settings.ResolveFolder(fs, workingFolder)

	sugarLogger := logger.GetSugar(baseFolder, hasDebugFlag(os.Args[1:]))
	defer logger.Defer()

	appSettings := settings.NewAppSettings(fs, baseFolder)
	if appSettings.Debug {
		logger.SetDebug(true)
	}
	sugarLogger.Infof("[Resolution Override Tool v%v] settings folder [%v]", settings.ROT_VERSION, baseFolder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return CreateConsole(fs, appSettings, sugarLogger, os.Stdout).Start(ctx, os.Args[1:])
}

// The logger exists before the flags are parsed.
func hasDebugFlag(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-debug", "--debug", "-debug=true", "--debug=true":
			return true
		}
	}
	return false
}
