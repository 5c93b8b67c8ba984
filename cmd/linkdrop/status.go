package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"linkdrop/internal/exchange"
	"linkdrop/internal/logger"
	"linkdrop/internal/store"
	"linkdrop/internal/xray/parser"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library and exchange settings",
	Long:  `Displays a dashboard of the local library: profile and group counts, protocol breakdown, database size, the selected profile and the exchange settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		ctx := context.Background()

		profiles, err := a.db.Profiles.List(ctx)
		if err != nil {
			logger.Log.Fatalf("Listing profiles failed: %v", err)
		}
		groups, err := a.db.Groups.List(ctx)
		if err != nil {
			logger.Log.Fatalf("Listing groups failed: %v", err)
		}

		protoCounts := make(map[string]int)
		remote, members := 0, 0
		for _, p := range profiles {
			protoCounts[protocolOf(p.Content)]++
			if p.IsRemote() {
				remote++
			}
		}
		for _, g := range groups {
			members += len(g.Profiles)
			for _, m := range g.Profiles {
				protoCounts[protocolOf(m.Content)]++
			}
		}

		selected := "-"
		if v, ok, err := a.db.Settings.Get(ctx, store.SettingSelectedProfile); err == nil && ok {
			if id, err := strconv.ParseUint(v, 10, 64); err == nil {
				if p, err := a.db.Profiles.Get(ctx, uint(id)); err == nil {
					selected = fmt.Sprintf("%s (id %d)", p.Name, p.ID)
				}
			}
		}

		dbSize := getFileSize(cfg.Database.Path)
		walSize := getFileSize(cfg.Database.Path + "-wal")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mLINKDROP STATUS\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Device Name:\t%s\n", a.lib.DeviceName(ctx))
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(dbSize))
		if walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ LIBRARY ]\033[0m\t")
		fmt.Fprintf(w, "  Profiles:\t%d (%d remote)\n", len(profiles), remote)
		fmt.Fprintf(w, "  Groups:\t%d (%d members)\n", len(groups), members)
		fmt.Fprintf(w, "  Selected:\t%s\n", selected)
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PROTOCOLS ]\033[0m\t")
		if len(protoCounts) == 0 {
			fmt.Fprintln(w, "  (Library is empty)")
		} else {
			var protos []string
			for k := range protoCounts {
				protos = append(protos, k)
			}
			sort.Strings(protos)
			for _, p := range protos {
				fmt.Fprintf(w, "  %s:\t%d\n", p, protoCounts[p])
			}
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ EXCHANGE ]\033[0m\t")
		fmt.Fprintf(w, "  Code Scheme:\t%s\n", cfg.Exchange.CodeScheme)
		fmt.Fprintf(w, "  Interfaces:\t%s\n", strings.Join(cfg.Exchange.PreferredInterfaces, ", "))
		fmt.Fprintf(w, "  On Conflict:\t%s\n", cfg.Exchange.OnConflict)
		fmt.Fprintf(w, "  Deep Link Host:\t%s\n", cfg.DeepLink.Host)
		if cfg.Exchange.MetricsListen != "" {
			fmt.Fprintf(w, "  Metrics:\thttp://%s%s (while receiving)\n", cfg.Exchange.MetricsListen, exchange.MetricsPath)
		}
		fmt.Fprintf(w, "  Tunnel SOCKS:\t%s\n", a.engine.SocksAddress())

		w.Flush()
		fmt.Println("")
	},
}

// protocolOf names what a stored config is, for display.
func protocolOf(content string) string {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return "empty"
	case strings.HasPrefix(content, "{"):
		return "json"
	}
	d, err := parser.Parse(content)
	if err != nil {
		return "unknown"
	}
	return d.Protocol()
}

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
