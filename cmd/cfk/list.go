package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/backend"
)

func listMain(command *cobra.Command, arguments []string) error {
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

	listing, err := coordinator.List(context.Background(), path, backend.ListOptions{
		Recursive: listConfiguration.recursive,
	})
	if err != nil {
		return err
	}

	for _, entry := range listing.Entries {
		fmt.Printf("%-10s %s\n", entry.Kind.String(), entry.Path.String())
	}
	return nil
}

var listCommand = &cobra.Command{
	Use:   "list <path>",
	Short: "List a virtual directory's contents",
	Run:   mainify(listMain),
}

var listConfiguration struct {
	recursive bool
}

func init() {
	flags := listCommand.Flags()
	flags.BoolVarP(&listConfiguration.recursive, "recursive", "r", false, "List recursively")
}
