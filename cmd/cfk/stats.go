package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsMain(command *cobra.Command, arguments []string) error {
	coordinator, err := openCoordinator()
	if err != nil {
		return err
	}
	defer coordinator.Close()

	stats := coordinator.Stats()
	fmt.Println("Hits:", stats.Hits)
	fmt.Println("Misses:", stats.Misses)
	fmt.Println("Tracked entries:", stats.Policy.EntryCount)
	fmt.Println("Tracked size:", stats.Policy.TotalSize)
	fmt.Printf("Utilization: %.2f%%\n", stats.Policy.Utilization*100)
	for backend := range stats.Backend {
		fmt.Println("Backend:", backend)
	}
	return nil
}

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Show coordinator and eviction policy occupancy statistics",
	Run:   mainify(statsMain),
}
