package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/artistcal/libs/config"
)

type options struct {
	server  string
	token   string
	artist  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "schedulectl",
		Short: "Manage artist schedules through the schedule-service API",
		Long: `schedulectl reads compiled weeks and edits working hours, overrides, blocks,
bookings and the artist timezone.

Examples:
  schedulectl --artist a1 week final --week 2026-01-05
  schedulectl --artist a1 slot create working --weekday MON --start 09:00 --end 17:00
  schedulectl --artist a1 booking create --customer c1 --start 2026-01-05T10:00:00Z --end 2026-01-05T11:00:00Z`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			if opts.artist == "" {
				return errors.New("--artist is required")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", config.String("SCHEDULE_SERVER", "http://localhost:8085"), "schedule-service base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", config.String("SCHEDULE_TOKEN", ""), "bearer token for write commands")
	root.PersistentFlags().StringVar(&opts.artist, "artist", config.String("SCHEDULE_ARTIST", ""), "artist id")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(newWeekCmd(opts), newSlotCmd(opts), newBookingCmd(opts), newTimezoneCmd(opts))
	return root
}

func (o *options) client() *client {
	return &client{
		base:   o.server,
		token:  o.token,
		artist: o.artist,
		http:   &http.Client{Timeout: o.timeout},
	}
}
