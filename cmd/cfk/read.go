package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func readMain(command *cobra.Command, arguments []string) error {
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

	body, err := coordinator.Read(context.Background(), path)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(body)
	return err
}

var readCommand = &cobra.Command{
	Use:   "read <path>",
	Short: "Read a virtual path's body, filling the cache on a miss",
	Run:   mainify(readMain),
}
