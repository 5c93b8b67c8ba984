package main

import (
	"context"
	"fmt"

	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Import the profile or group carried by a deep link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		out, err := a.lib.ImportDeepLink(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("Opening link failed: %v", err)
		}
		fmt.Printf("Imported %s %q (%s)\n", out.Kind, out.Name, out.Action)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
