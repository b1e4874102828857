package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/backend"
)

func copyMain(command *cobra.Command, arguments []string) error {
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

	return coordinator.Copy(context.Background(), src, dst, backend.CopyOptions{
		Overwrite: copyConfiguration.overwrite,
	})
}

var copyCommand = &cobra.Command{
	Use:   "copy <src> <dst>",
	Short: "Duplicate a path to another path, invalidating cached state for both",
	Run:   mainify(copyMain),
}

var copyConfiguration struct {
	overwrite bool
}

func init() {
	flags := copyCommand.Flags()
	flags.BoolVar(&copyConfiguration.overwrite, "overwrite", false, "Overwrite dst if it already exists")
}
