package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/cfk"
)

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(cfk.Version)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "cfk",
	Short: "cfk is an offline-first cache engine for heterogeneous storage backends.",
	Run:   rootMain,
}

var rootConfiguration struct {
	// configPath is the path to the YAML configuration file.
	configPath string
	// version indicates that version information should be printed.
	version bool
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&rootConfiguration.configPath, "config", "cfk.yml", "Path to the cache engine configuration file")

	localFlags := rootCommand.Flags()
	localFlags.BoolVarP(&rootConfiguration.version, "version", "v", false, "Show version information")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		statCommand,
		listCommand,
		readCommand,
		writeCommand,
		copyCommand,
		renameCommand,
		deleteCommand,
		invalidateCommand,
		gcCommand,
		statsCommand,
	)
}

func main() {
	loadDotEnv()

	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
