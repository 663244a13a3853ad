package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conduit-registry/internal/registry"
)

// listings command
var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Inspect and manage listings",
}

var listingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all listings, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListListings")
		if err != nil {
			return err
		}
		defer a.Close()

		listings, err := a.Service().ListListings(context.Background())
		if err != nil {
			return err
		}
		for _, l := range listings {
			fmt.Printf("%s  %s  %8d sats  %s\n", l.ContentHash, l.CreatedAt.Format(time.RFC3339), l.PriceSats, l.Title)
		}
		return nil
	},
}

var listingsGetCmd = &cobra.Command{
	Use:   "get HASH",
	Short: "Show one listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetListing")
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := a.Service().GetListing(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(l)
	},
}

var listingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearListings")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Service().ClearListings(context.Background(), a.OperatorGrant())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d listing(s)\n", n)
		return nil
	},
}

// seeders command
var seedersCmd = &cobra.Command{
	Use:   "seeders",
	Short: "Inspect and manage seeder announcements",
}

var seedersListCmd = &cobra.Command{
	Use:   "list [HASH]",
	Short: "List announcements, optionally for one content hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListSeeders")
		if err != nil {
			return err
		}
		defer a.Close()

		hash := ""
		if len(args) == 1 {
			hash = args[0]
		}
		seeders, err := a.Service().ListSeeders(context.Background(), hash)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, s := range seeders {
			state := "stale"
			if registry.IsFresh(s.AnnouncedAt, now) {
				state = "fresh"
			}
			fmt.Printf("%s  %s  %-5s  %s  %s\n", s.ContentHash, s.AnnouncedAt.Format(time.RFC3339), state, s.SeederPubkey, s.SeederAddress)
		}
		return nil
	},
}

var seedersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every seeder announcement",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearSeeders")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Service().ClearSeeders(context.Background(), a.OperatorGrant())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d announcement(s)\n", n)
		return nil
	},
}

var seedersSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete announcements older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SweepSeeders")
		if err != nil {
			return err
		}
		defer a.Close()

		retention, _ := cmd.Flags().GetDuration("retention")
		n, err := a.Service().SweepSeeders(context.Background(), retention)
		if err != nil {
			return err
		}
		fmt.Printf("Swept %d announcement(s)\n", n)
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover HASH",
	Short: "Show who can serve a content hash right now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Discover")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Service().Discover(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(d)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Search")
		if err != nil {
			return err
		}
		defer a.Close()

		var opts registry.SearchOptions
		opts.ContentType, _ = cmd.Flags().GetString("type")
		opts.MaxPrice, _ = cmd.Flags().GetUint64("max-price")
		opts.Limit, _ = cmd.Flags().GetInt("limit")

		results, err := a.Service().Search(context.Background(), args[0], opts)
		if err != nil {
			return err
		}
		for _, l := range results {
			fmt.Printf("%s  %8d sats  %s\n", l.ContentHash, l.PriceSats, l.Title)
		}
		return nil
	},
}

// manufacturers command
var manufacturersCmd = &cobra.Command{
	Use:   "manufacturers",
	Short: "Manage hardware attestation trust anchors",
}

var manufacturersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a manufacturer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RegisterManufacturer")
		if err != nil {
			return err
		}
		defer a.Close()

		var m registry.Manufacturer
		m.PKHex, _ = cmd.Flags().GetString("pk")
		m.Name, _ = cmd.Flags().GetString("name")
		m.Description, _ = cmd.Flags().GetString("description")
		m.Website, _ = cmd.Flags().GetString("website")

		stored, err := a.Service().RegisterManufacturer(context.Background(), a.OperatorGrant(), m)
		if err != nil {
			return err
		}
		return printJSON(stored)
	},
}

var manufacturersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List manufacturers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListManufacturers")
		if err != nil {
			return err
		}
		defer a.Close()

		ms, err := a.Service().ListManufacturers(context.Background())
		if err != nil {
			return err
		}
		for _, m := range ms {
			fmt.Printf("%s  %s  %s\n", m.PKHex, m.RegisteredAt.Format(time.RFC3339), m.Name)
		}
		return nil
	},
}

var manufacturersGetCmd = &cobra.Command{
	Use:   "get PK_HEX",
	Short: "Show one manufacturer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetManufacturer")
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.Service().GetManufacturer(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(m)
	},
}

var manufacturersRmCmd = &cobra.Command{
	Use:   "rm PK_HEX",
	Short: "Delete a manufacturer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteManufacturer")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteManufacturer(context.Background(), a.OperatorGrant(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted manufacturer %s\n", args[0])
		return nil
	},
}

var manufacturersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every manufacturer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearManufacturers")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Service().ClearManufacturers(context.Background(), a.OperatorGrant())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d manufacturer(s)\n", n)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent admin operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AdminHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		ops, err := a.Service().AdminHistory(context.Background(), a.OperatorGrant(), limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No admin operations recorded.")
			return nil
		}
		for _, op := range ops {
			fmt.Printf("#%d  %-20s  %s  %-7s  %-24s  affected=%d  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format(time.RFC3339),
				op.Status,
				op.Actor,
				op.Affected,
				op.Parameters,
			)
		}
		return nil
	},
}

func init() {
	listingsCmd.AddCommand(listingsListCmd)
	listingsCmd.AddCommand(listingsGetCmd)
	listingsCmd.AddCommand(listingsClearCmd)
	rootCmd.AddCommand(listingsCmd)

	seedersCmd.AddCommand(seedersListCmd)
	seedersCmd.AddCommand(seedersClearCmd)
	seedersCmd.AddCommand(seedersSweepCmd)
	seedersSweepCmd.Flags().Duration("retention", 24*time.Hour, "Delete announcements older than this (at least the freshness window)")
	rootCmd.AddCommand(seedersCmd)

	rootCmd.AddCommand(discoverCmd)

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("type", "", "Filter by file extension or MIME type")
	searchCmd.Flags().Uint64("max-price", 0, "Maximum price in sats (0 = no limit)")
	searchCmd.Flags().IntP("limit", "n", 0, "Maximum number of results (0 = no limit)")

	manufacturersCmd.AddCommand(manufacturersAddCmd)
	manufacturersAddCmd.Flags().String("pk", "", "Manufacturer public key (hex)")
	manufacturersAddCmd.Flags().String("name", "", "Manufacturer name")
	manufacturersAddCmd.Flags().String("description", "", "Free-form description")
	manufacturersAddCmd.Flags().String("website", "", "Manufacturer website URL")
	manufacturersAddCmd.MarkFlagRequired("pk")
	manufacturersAddCmd.MarkFlagRequired("name")
	manufacturersCmd.AddCommand(manufacturersListCmd)
	manufacturersCmd.AddCommand(manufacturersGetCmd)
	manufacturersCmd.AddCommand(manufacturersRmCmd)
	manufacturersCmd.AddCommand(manufacturersClearCmd)
	rootCmd.AddCommand(manufacturersCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
