package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, opts *options, method, target string, body any, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	data, err := opts.client().do(ctx, method, target, body, headers)
	if err != nil {
		return err
	}
	if method == http.MethodDelete {
		fmt.Fprintln(cmd.OutOrStdout(), "deleted")
		return nil
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func newWeekCmd(opts *options) *cobra.Command {
	var week string
	var ics bool
	cmd := &cobra.Command{Use: "week", Short: "Show a compiled week"}
	view := func(name string) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "Show the " + name + " week",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				path := name
				if ics {
					if name != "final" {
						return errors.New("--ics is only available for the final week")
					}
					path += ".ics"
				}
				target := opts.client().path("week", path)
				if week != "" {
					target += "?weekStart=" + url.QueryEscape(week)
				}
				ctx, cancel := context.WithTimeout(c.Context(), opts.timeout)
				defer cancel()
				data, err := opts.client().do(ctx, http.MethodGet, target, nil, nil)
				if err != nil {
					return err
				}
				if ics {
					_, err = c.OutOrStdout().Write(data)
					return err
				}
				return printJSON(c.OutOrStdout(), data)
			},
		}
	}
	cmd.PersistentFlags().StringVar(&week, "week", "", "Monday of the week (YYYY-MM-DD); defaults to the current week")
	cmd.PersistentFlags().BoolVar(&ics, "ics", false, "print the week as iCalendar")
	cmd.AddCommand(view("final"), view("original"))
	return cmd
}

func newSlotCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "slot", Short: "List, create or delete availability slots"}

	var weekday, start, end, note string
	create := &cobra.Command{
		Use:       "create working|override|blocked",
		Short:     "Create a slot",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"working", "override", "blocked"},
		RunE: func(c *cobra.Command, args []string) error {
			kind := strings.ToLower(args[0])
			body := map[string]string{"note": note}
			if kind == "working" {
				if weekday == "" {
					return errors.New("--weekday is required for working slots")
				}
				body["weekday"], body["startTime"], body["endTime"] = weekday, start, end
			} else {
				body["start"], body["end"] = start, end
			}
			return run(c, opts, http.MethodPost, opts.client().path("slot", kind), body, nil)
		},
	}
	create.Flags().StringVar(&weekday, "weekday", "", "weekday for working slots (MON..SUN)")
	create.Flags().StringVar(&start, "start", "", "HH:MM for working slots, RFC3339 otherwise")
	create.Flags().StringVar(&end, "end", "", "HH:MM for working slots, RFC3339 otherwise")
	create.Flags().StringVar(&note, "note", "", "free text note")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")

	del := &cobra.Command{
		Use:   "delete KIND ID",
		Short: "Delete a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return run(c, opts, http.MethodDelete, opts.client().path("slot", strings.ToLower(args[0]), args[1]), nil, nil)
		},
	}

	list := &cobra.Command{
		Use:   "list KIND",
		Short: "List slots of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run(c, opts, http.MethodGet, opts.client().path("slot", strings.ToLower(args[0])), nil, nil)
		},
	}

	cmd.AddCommand(create, del, list)
	return cmd
}

func newBookingCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "booking", Short: "Create bookings and change their status"}

	var customer, service, start, end, status, key string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a booking inside the artist's availability",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			body := map[string]string{"customerId": customer, "serviceId": service, "start": start, "end": end}
			if status != "" {
				body["status"] = strings.ToUpper(status)
			}
			var headers map[string]string
			if key != "" {
				headers = map[string]string{"Idempotency-Key": key}
			}
			return run(c, opts, http.MethodPost, opts.client().path("bookings"), body, headers)
		},
	}
	create.Flags().StringVar(&customer, "customer", "", "customer id")
	create.Flags().StringVar(&service, "service", "", "service id")
	create.Flags().StringVar(&start, "start", "", "RFC3339 start")
	create.Flags().StringVar(&end, "end", "", "RFC3339 end")
	create.Flags().StringVar(&status, "status", "", "PENDING (default) or CONFIRMED")
	create.Flags().StringVar(&key, "idempotency-key", "", "replay-safe request key")
	_ = create.MarkFlagRequired("customer")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")

	setStatus := &cobra.Command{
		Use:   "status ID CONFIRMED|COMPLETED|CANCELLED",
		Short: "Move a booking to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			body := map[string]string{"status": strings.ToUpper(args[1])}
			return run(c, opts, http.MethodPost, opts.client().path("bookings", args[0], "status"), body, nil)
		},
	}

	cmd.AddCommand(create, setStatus)
	return cmd
}

func newTimezoneCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "timezone", Short: "Manage the artist timezone"}
	cmd.AddCommand(&cobra.Command{
		Use:   "set IANA_NAME",
		Short: "Change the artist timezone",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run(c, opts, http.MethodPut, opts.client().path("timezone"), map[string]string{"timezone": args[0]}, nil)
		},
	})
	return cmd
}
