package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/backend"
)

func deleteMain(command *cobra.Command, arguments []string) error {
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

	return coordinator.Delete(context.Background(), path, backend.DeleteOptions{
		Recursive: deleteConfiguration.recursive,
	})
}

var deleteCommand = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a virtual path from its origin backend",
	Run:   mainify(deleteMain),
}

var deleteConfiguration struct {
	recursive bool
}

func init() {
	flags := deleteCommand.Flags()
	flags.BoolVarP(&deleteConfiguration.recursive, "recursive", "r", false, "Delete recursively")
}
