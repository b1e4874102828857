package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func statMain(command *cobra.Command, arguments []string) error {
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

	entry, err := coordinator.Stat(context.Background(), path)
	if err != nil {
		return err
	}

	fmt.Println("Path:", entry.Path.String())
	fmt.Println("Kind:", entry.Kind.String())
	if entry.Meta.Size != nil {
		fmt.Println("Size:", *entry.Meta.Size)
	}
	if entry.Meta.Modified != nil {
		fmt.Println("Modified:", entry.Meta.Modified.Format("2006-01-02T15:04:05Z07:00"))
	}
	if entry.Meta.ContentHash != nil {
		fmt.Println("Content hash:", *entry.Meta.ContentHash)
	}
	return nil
}

var statCommand = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show cached metadata for a virtual path",
	Run:   mainify(statMain),
}
