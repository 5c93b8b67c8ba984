package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"linkdrop/internal/deeplink"
	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var (
	flagURL        string
	flagAutoUpdate bool
	flagInterval   int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage standalone profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List standalone profiles",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		profiles, err := a.db.Profiles.List(context.Background())
		if err != nil {
			logger.Log.Fatalf("Listing profiles failed: %v", err)
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPROTOCOL\tSOURCE\tUPDATED")
		for _, p := range profiles {
			source := "local"
			if p.IsRemote() {
				source = p.URL
				if p.AutoUpdate {
					source += fmt.Sprintf(" (every %dm)", p.AutoUpdateInterval)
				}
			}
			updated := "-"
			if !p.LastUpdated.IsZero() {
				updated = p.LastUpdated.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, protocolOf(p.Content), source, updated)
		}
		w.Flush()
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> [link-or-json]",
	Short: "Add a profile from a link, a JSON config or a URL",
	Long:  `Adds a profile. Pass the link or config as the second argument, "-" to read it from stdin, or use --url to download it.`,
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		content := ""
		if len(args) == 2 {
			content = readArg(args[1])
		}
		if content == "" && flagURL == "" {
			logger.Log.Fatal("Either content or --url is required")
		}

		a := openApp()
		defer a.Close()

		out, err := a.lib.Import(context.Background(), exchange.Payload{
			Type:               exchange.KindProfile,
			Name:               args[0],
			Content:            content,
			URL:                flagURL,
			AutoUpdate:         flagAutoUpdate,
			AutoUpdateInterval: flagInterval,
		})
		if err != nil {
			logger.Log.Fatalf("Adding profile failed: %v", err)
		}
		fmt.Printf("Profile %q (id %d): %s\n", out.Name, out.ID, out.Action)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print a profile's content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		p, err := a.findProfile(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("Profile lookup failed: %v", err)
		}
		fmt.Println(p.Content)
	},
}

var profileShareCmd = &cobra.Command{
	Use:   "share <id|name>",
	Short: "Print a deep link for a remote profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		p, err := a.findProfile(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("Profile lookup failed: %v", err)
		}
		if !p.IsRemote() {
			logger.Log.Fatalf("Profile %q has no URL; use 'send' to share it directly", p.Name)
		}
		fmt.Println(deeplink.Build(cfg.DeepLink.Host, deeplink.Pending{
			Name:               p.Name,
			URL:                p.URL,
			AutoUpdate:         p.AutoUpdate,
			AutoUpdateInterval: p.AutoUpdateInterval,
		}))
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <id|name>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx := context.Background()
		p, err := a.findProfile(ctx, args[0])
		if err != nil {
			logger.Log.Fatalf("Profile lookup failed: %v", err)
		}
		if err := a.db.Profiles.Delete(ctx, p.ID); err != nil {
			logger.Log.Fatalf("Deleting profile failed: %v", err)
		}
		fmt.Printf("Deleted profile %q\n", p.Name)
	},
}

// readArg returns s, or stdin when s is "-".
func readArg(s string) string {
	if s != "-" {
		return strings.TrimSpace(s)
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		logger.Log.Fatalf("Reading stdin failed: %v", err)
	}
	return strings.TrimSpace(string(b))
}

func init() {
	profileAddCmd.Flags().StringVar(&flagURL, "url", "", "Download the profile from this URL")
	profileAddCmd.Flags().BoolVar(&flagAutoUpdate, "auto-update", false, "Refresh the profile from its URL periodically")
	profileAddCmd.Flags().IntVar(&flagInterval, "interval", deeplink.DefaultInterval, "Auto-update interval in minutes")

	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileShowCmd, profileShareCmd, profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
}
