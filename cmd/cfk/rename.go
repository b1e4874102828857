package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/backend"
)

func renameMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return command.Help()
	}
	src, err := parseVirtualPath(arguments[0])
	if err != nil {
		return err
	}
	dst, err := parseVirtualPath(arguments[1])
	if err != nil {
		return err
	}

	coordinator, err := openCoordinator()
	if err != nil {
		return err
	}
	defer coordinator.Close()

	return coordinator.Rename(context.Background(), src, dst, backend.MoveOptions{
		Overwrite: renameConfiguration.overwrite,
	})
}

var renameCommand = &cobra.Command{
	Use:   "rename <src> <dst>",
	Short: "Relocate a path to another path, invalidating cached state for both",
	Run:   mainify(renameMain),
}

var renameConfiguration struct {
	overwrite bool
}

func init() {
	flags := renameCommand.Flags()
	flags.BoolVar(&renameConfiguration.overwrite, "overwrite", false, "Overwrite dst if it already exists")
}
