package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfk-cache/cfk/pkg/backend"
)

func writeMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return command.Help()
	}
	path, err := parseVirtualPath(arguments[0])
	if err != nil {
		return err
	}

	var reader io.Reader = os.Stdin
	if writeConfiguration.fromFile != "" {
		file, err := os.Open(writeConfiguration.fromFile)
		if err != nil {
			return err
		}
		defer file.Close()
		reader = file
	}

	coordinator, err := openCoordinator()
	if err != nil {
		return err
	}
	defer coordinator.Close()

	return coordinator.Write(context.Background(), path, reader, backend.WriteOptions{
		MimeType: writeConfiguration.mimeType,
	})
}

var writeCommand = &cobra.Command{
	Use:   "write <path>",
	Short: "Write a body to a virtual path's origin backend, invalidating cached state",
	Run:   mainify(writeMain),
}

var writeConfiguration struct {
	fromFile string
	mimeType string
}

func init() {
	flags := writeCommand.Flags()
	flags.StringVar(&writeConfiguration.fromFile, "from-file", "", "Read the body from a local file instead of standard input")
	flags.StringVar(&writeConfiguration.mimeType, "mime-type", "", "MIME type to attach to the written body")
}
