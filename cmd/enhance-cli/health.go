package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the enhancement backend is reachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := setup("enhance-cli")

		start := time.Now()
		ok := client.Probe.Reachable(context.Background(), client.BaseURL)
		elapsed := time.Since(start).Round(time.Millisecond)

		if !ok {
			fmt.Printf("Backend %s is UNREACHABLE (%s). Requests will return synthesized results.\n", client.BaseURL, elapsed)
			os.Exit(1)
		}
		fmt.Printf("Backend %s is reachable (%s).\n", client.BaseURL, elapsed)
	},
}
