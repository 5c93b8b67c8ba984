package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"linkdrop/internal/deeplink"
	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"

	"github.com/spf13/cobra"
)

var (
	groupURL        string
	groupLinks      []string
	groupAutoUpdate bool
	groupInterval   int
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups and subscriptions",
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		groups, err := a.db.Groups.List(context.Background())
		if err != nil {
			logger.Log.Fatalf("Listing groups failed: %v", err)
		}
		if len(groups) == 0 {
			fmt.Println("No groups.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tSUBSCRIPTION")
		for _, g := range groups {
			sub := "-"
			if g.URL != "" {
				sub = g.URL
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", g.ID, g.Name, len(g.Profiles), sub)
		}
		w.Flush()
	},
}

var groupShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "List the members of a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		g, err := a.findGroup(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("Group lookup failed: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPROTOCOL")
		for _, m := range g.Profiles {
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, protocolOf(m.Content))
		}
		w.Flush()
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a group from a subscription URL or a list of links",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if groupURL == "" && len(groupLinks) == 0 {
			logger.Log.Fatal("Either --url or at least one --link is required")
		}

		a := openApp()
		defer a.Close()

		out, err := a.lib.Import(context.Background(), exchange.Payload{
			Type:               exchange.KindGroup,
			Name:               args[0],
			URL:                groupURL,
			Links:              groupLinks,
			AutoUpdate:         groupAutoUpdate,
			AutoUpdateInterval: groupInterval,
		})
		if err != nil {
			logger.Log.Fatalf("Adding group failed: %v", err)
		}
		fmt.Printf("Group %q (id %d): %s, %d members\n", out.Name, out.ID, out.Action, out.Members)
	},
}

var groupShareCmd = &cobra.Command{
	Use:   "share <id|name>",
	Short: "Print a deep link for a subscription group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		g, err := a.findGroup(context.Background(), args[0])
		if err != nil {
			logger.Log.Fatalf("Group lookup failed: %v", err)
		}
		if g.URL == "" {
			logger.Log.Fatalf("Group %q has no subscription URL; use 'send' to share it directly", g.Name)
		}
		fmt.Println(deeplink.Build(cfg.DeepLink.Host, deeplink.Pending{
			Group:              true,
			Name:               g.Name,
			URL:                g.URL,
			AutoUpdate:         g.AutoUpdate,
			AutoUpdateInterval: g.AutoUpdateInterval,
		}))
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:     "remove <id|name>",
	Aliases: []string{"rm"},
	Short:   "Delete a group and its members",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx := context.Background()
		g, err := a.findGroup(ctx, args[0])
		if err != nil {
			logger.Log.Fatalf("Group lookup failed: %v", err)
		}
		if err := a.db.Groups.Delete(ctx, g.ID); err != nil {
			logger.Log.Fatalf("Deleting group failed: %v", err)
		}
		fmt.Printf("Deleted group %q and %d members\n", g.Name, len(g.Profiles))
	},
}

func init() {
	groupAddCmd.Flags().StringVar(&groupURL, "url", "", "Subscription URL")
	groupAddCmd.Flags().StringArrayVar(&groupLinks, "link", nil, "Member link (repeatable)")
	groupAddCmd.Flags().BoolVar(&groupAutoUpdate, "auto-update", false, "Refresh the subscription periodically")
	groupAddCmd.Flags().IntVar(&groupInterval, "interval", deeplink.DefaultInterval, "Auto-update interval in minutes")

	groupCmd.AddCommand(groupListCmd, groupShowCmd, groupAddCmd, groupShareCmd, groupRemoveCmd)
	rootCmd.AddCommand(groupCmd)
}
