package main

import (
	"context"
	"fmt"

	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device [name]",
	Short: "Show or set the name other devices see",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx := context.Background()
		if len(args) == 1 {
			if err := a.lib.SetDeviceName(ctx, args[0]); err != nil {
				logger.Log.Fatalf("Saving device name failed: %v", err)
			}
		}
		fmt.Println(a.lib.DeviceName(ctx))
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)
}
