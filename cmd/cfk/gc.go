package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func gcMain(command *cobra.Command, arguments []string) error {
	coordinator, err := openCoordinator()
	if err != nil {
		return err
	}
	defer coordinator.Close()

	if gcConfiguration.sweep {
		result, freed, err := coordinator.EvictAndSweep()
		if err != nil {
			return err
		}
		fmt.Printf("Evicted %d entries (%d bytes), freed %d bytes on disk\n", len(result.Evicted), result.SizeFreed, freed)
		return nil
	}

	freed, err := coordinator.GC()
	if err != nil {
		return err
	}
	fmt.Printf("Freed %d bytes\n", freed)
	return nil
}

var gcCommand = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim blob storage no longer tracked by the eviction policy",
	Run:   mainify(gcMain),
}

var gcConfiguration struct {
	sweep bool
}

func init() {
	flags := gcCommand.Flags()
	flags.BoolVar(&gcConfiguration.sweep, "sweep", false, "Run an eviction pass before reclaiming storage")
}
