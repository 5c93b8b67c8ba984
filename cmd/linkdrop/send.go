package main

import (
	"fmt"

	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var (
	sendProfile string
	sendGroup   string
)

var sendCmd = &cobra.Command{
	Use:   "send <code>",
	Short: "Send a profile or group to a receiving device",
	Long:  `Sends to the device showing <code> (the text under its QR code). Pick what to send with --profile or --group.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if (sendProfile == "") == (sendGroup == "") {
			logger.Log.Fatal("Exactly one of --profile or --group is required")
		}

		a := openApp()
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		ex := a.exchange(nil)
		if sendProfile != "" {
			p, err := a.findProfile(ctx, sendProfile)
			if err != nil {
				logger.Log.Fatalf("Profile lookup failed: %v", err)
			}
			if err := ex.SendProfile(ctx, args[0], p.ID); err != nil {
				logger.Log.Fatalf("Send failed: %v", err)
			}
			fmt.Printf("Sent profile %q\n", p.Name)
			return
		}

		g, err := a.findGroup(ctx, sendGroup)
		if err != nil {
			logger.Log.Fatalf("Group lookup failed: %v", err)
		}
		if err := ex.SendGroup(ctx, args[0], g.ID); err != nil {
			logger.Log.Fatalf("Send failed: %v", err)
		}
		fmt.Printf("Sent group %q\n", g.Name)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendProfile, "profile", "", "Profile ID or name")
	sendCmd.Flags().StringVar(&sendGroup, "group", "", "Group ID or name")
	rootCmd.AddCommand(sendCmd)
}
