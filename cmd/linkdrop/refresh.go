package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"linkdrop/internal/logger"
	"linkdrop/internal/service"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download remote profiles and subscriptions again",
	Long:  `Refreshes auto-updating profiles and groups whose interval has elapsed. Use --all to refresh every remote entry regardless of schedule.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		var due service.Due
		var err error
		if refreshAll {
			due, err = allRemote(ctx, a)
		} else {
			due, err = a.lib.DueForRefresh(ctx, time.Now())
		}
		if err != nil {
			logger.Log.Fatalf("Selecting entries failed: %v", err)
		}
		if due.Len() == 0 {
			logger.Log.Info("Nothing to refresh.")
			return
		}

		bar := progressbar.NewOptions(due.Len(),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Refreshing...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))

		failed := 0
		for _, p := range due.Profiles {
			if ctx.Err() != nil {
				break
			}
			if err := a.lib.RefreshProfile(ctx, p.ID); err != nil {
				logger.Log.Warnf("Profile %q: %v", p.Name, err)
				failed++
			}
			bar.Add(1)
		}
		members := 0
		for _, g := range due.Groups {
			if ctx.Err() != nil {
				break
			}
			n, err := a.lib.RefreshGroup(ctx, g.ID)
			if err != nil {
				logger.Log.Warnf("Group %q: %v", g.Name, err)
				failed++
			}
			members += n
			bar.Add(1)
		}
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		logger.Log.Infof("Refreshed %d profiles and %d groups (%d members), %d failed.",
			len(due.Profiles), len(due.Groups), members, failed)
	},
}

func allRemote(ctx context.Context, a *app) (service.Due, error) {
	var due service.Due
	profiles, err := a.db.Profiles.List(ctx)
	if err != nil {
		return due, err
	}
	for _, p := range profiles {
		if p.IsRemote() {
			due.Profiles = append(due.Profiles, p)
		}
	}
	groups, err := a.db.Groups.List(ctx)
	if err != nil {
		return due, err
	}
	for _, g := range groups {
		if g.URL != "" {
			due.Groups = append(due.Groups, g)
		}
	}
	return due, nil
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "Refresh every remote profile and subscription")
	rootCmd.AddCommand(refreshCmd)
}
