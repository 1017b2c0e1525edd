package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	var graph bool

	cmd := &cobra.Command{
		Use:           "api",
		Short:         "PM-AJAY monitoring portal API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startWithDig(graph)
		},
	}
	cmd.Flags().BoolVar(&graph, "graph", false, "print the dependency graph (DOT) and exit")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
