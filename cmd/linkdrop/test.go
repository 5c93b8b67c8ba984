package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"linkdrop/internal/logger"
	"linkdrop/internal/model"
	"linkdrop/internal/probe"
	"linkdrop/internal/xray"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var testGroup string

var testCmd = &cobra.Command{
	Use:   "test [id|name...]",
	Short: "Check which profiles carry traffic",
	Long:  `Starts the tunnel with each profile in turn and fetches the probe URL through it. Use --group to test every member of a group.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && testGroup == "" {
			logger.Log.Fatal("Name at least one profile or use --group")
		}

		a := openApp()
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		var candidates []model.Profile
		for _, arg := range args {
			p, err := a.findProfile(ctx, arg)
			if err != nil {
				logger.Log.Fatalf("Profile lookup failed: %v", err)
			}
			candidates = append(candidates, *p)
		}
		if testGroup != "" {
			g, err := a.findGroup(ctx, testGroup)
			if err != nil {
				logger.Log.Fatalf("Group lookup failed: %v", err)
			}
			candidates = append(candidates, g.Profiles...)
		}

		stats := probe.NewStats()
		prober := probe.New(a.engine.SocksAddress(), probe.Options{
			URL:     cfg.Probe.URL,
			Timeout: cfg.Probe.Timeout,
			Retries: cfg.Probe.Retries,
		}, stats)

		bar := progressbar.NewOptions(len(candidates),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Checking...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))

		type row struct {
			name   string
			result string
		}
		var rows []row
		for _, p := range candidates {
			if ctx.Err() != nil {
				break
			}
			if strings.TrimSpace(p.Content) == "" {
				rows = append(rows, row{p.Name, "no content"})
				bar.Add(1)
				continue
			}
			if err := a.engine.Restart(ctx, p.ID, xray.Prepare(p.Content)); err != nil {
				logger.Log.Warnf("Profile %q: %v", p.Name, err)
				rows = append(rows, row{p.Name, "engine error"})
				bar.Add(1)
				continue
			}
			res, err := prober.Check(ctx)
			if err != nil {
				rows = append(rows, row{p.Name, "dead"})
			} else {
				rows = append(rows, row{p.Name, res.Latency.Round(time.Millisecond).String()})
			}
			bar.Add(1)
		}
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tRESULT")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\n", r.name, r.result)
		}
		w.Flush()

		stats.Report(os.Stdout)
	},
}

func init() {
	testCmd.Flags().StringVar(&testGroup, "group", "", "Test every member of this group")
	rootCmd.AddCommand(testCmd)
}
