package main

import (
	"fmt"

	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var connectCmd = &cobra.Command{
	Use:   "connect <id|name>",
	Short: "Run the tunnel for a profile until interrupted",
	Long:  `Starts xray with the profile and exposes a SOCKS inbound. Group members are addressed by ID (see 'group show').`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		p, err := a.findProfile(ctx, args[0])
		if err != nil {
			logger.Log.Fatalf("Profile lookup failed: %v", err)
		}
		if err := a.lib.Connect(ctx, p.ID); err != nil {
			logger.Log.Fatalf("Connect failed: %v", err)
		}

		fmt.Printf("Connected to %q. SOCKS proxy on %s. Press Ctrl+C to stop.\n", p.Name, a.engine.SocksAddress())
		<-ctx.Done()
		fmt.Println("\nDisconnecting...")
		printRecentWarnings()
	},
}

// printRecentWarnings shows what went wrong during a long-running command.
func printRecentWarnings() {
	if ring == nil {
		return
	}
	lines := ring.Tail(10, zapcore.WarnLevel)
	if len(lines) == 0 {
		return
	}
	fmt.Println("Recent warnings:")
	for _, l := range lines {
		fmt.Println("  " + l)
	}
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
