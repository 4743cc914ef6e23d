package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackportal/portal/internal/dto"
	"github.com/hackportal/portal/internal/service"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and activate events",
	}
	cmd.AddCommand(newEventsListCommand(opts))
	cmd.AddCommand(newEventsActivateCommand(opts))
	return cmd
}

func newEventsListCommand(opts *rootOptions) *cobra.Command {
	var (
		activeOnly bool
		search     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEventService(cmd.Context(), opts, func(ctx context.Context, svc service.EventService) error {
				query := &dto.ListEventsQuery{Limit: 100, Search: search}
				if activeOnly {
					query.IsActive = &activeOnly
				}
				result, err := svc.List(ctx, query)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), opts.Format, result.Events)
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only the active event")
	cmd.Flags().StringVar(&search, "search", "", "filter by name or slug")
	return cmd
}

func newEventsActivateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make an event the single active event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEventService(cmd.Context(), opts, func(ctx context.Context, svc service.EventService) error {
				event, err := svc.Activate(ctx, args[0])
				if err != nil {
					return fmt.Errorf("activate %s: %w", args[0], err)
				}
				return printEvents(cmd.OutOrStdout(), opts.Format, []dto.EventResponse{*event})
			})
		},
	}
}

func withEventService(ctx context.Context, opts *rootOptions, fn func(context.Context, service.EventService) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	stores, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	return fn(ctx, service.NewEventService(stores.Events))
}

func printEvents(w io.Writer, format string, events []dto.EventResponse) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSLUG\tNAME\tACTIVE\tSTARTS\tENDS")
	for _, e := range events {
		active := ""
		if e.IsActive {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Slug, e.Name, active, e.StartsAt, e.EndsAt)
	}
	return tw.Flush()
}
