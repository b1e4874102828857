package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func invalidateMain(command *cobra.Command, arguments []string) error {
	if invalidateConfiguration.backend != "" {
		if len(arguments) != 0 {
			return errors.New("--backend does not take a path argument")
		}
		coordinator, err := openCoordinator()
		if err != nil {
			return err
		}
		defer coordinator.Close()
		return coordinator.ClearBackend(invalidateConfiguration.backend)
	}

	if len(arguments) != 1 {
		return command.Help()
	}
	path, err := parseVirtualPath(arguments[0])
	if err != nil {
		return err
	}

	coordinator, err := openCoordinator()
	if err != nil {
		return err
	}
	defer coordinator.Close()

	if invalidateConfiguration.directory {
		return coordinator.InvalidateDirectory(path)
	}
	return coordinator.Invalidate(path)
}

var invalidateCommand = &cobra.Command{
	Use:   "invalidate [<path>]",
	Short: "Invalidate cached state without touching the origin backend",
	Run:   mainify(invalidateMain),
}

var invalidateConfiguration struct {
	directory bool
	backend   string
}

func init() {
	flags := invalidateCommand.Flags()
	flags.BoolVarP(&invalidateConfiguration.directory, "directory", "d", false, "Invalidate path and everything beneath it")
	flags.StringVar(&invalidateConfiguration.backend, "backend", "", "Invalidate every cached entry for the named backend instead of a single path")
}
