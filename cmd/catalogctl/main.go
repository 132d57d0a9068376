// Command catalogctl queries and validates template fixtures offline,
// without starting the marketplace server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terra-clan/template-marketplace/internal/catalog"
	"github.com/terra-clan/template-marketplace/internal/models"
	"github.com/terra-clan/template-marketplace/internal/templates"
)

type options struct {
	dir     string
	verbose bool

	category string
	source   string
	search   string
	sort     string
	json     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Query and validate marketplace template fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelError
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&opts.dir, "dir", "./templates", "fixture directory")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log loader activity to stderr")

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Filter, search and sort the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.OutOrStdout(), opts)
		},
	}
	queryCmd.Flags().StringVar(&opts.category, "category", models.FilterAll, "channel filter")
	queryCmd.Flags().StringVar(&opts.source, "source", models.FilterAll, "source filter")
	queryCmd.Flags().StringVar(&opts.search, "search", "", "case-insensitive text search")
	queryCmd.Flags().StringVar(&opts.sort, "sort", string(models.SortPopularity), "sort key")
	queryCmd.Flags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print marketplace summary figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), opts)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load fixtures and report rejected entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), opts)
		},
	}

	root.AddCommand(queryCmd, statsCmd, validateCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func load(dir string) (*templates.Loader, *templates.LoadResult, error) {
	loader := templates.NewLoader()
	result, err := loader.LoadFromDir(dir)
	if err != nil {
		return nil, nil, err
	}
	return loader, result, nil
}

func runQuery(out io.Writer, opts *options) error {
	spec, err := models.ParseQuerySpec(opts.category, opts.source, opts.search, opts.sort)
	if err != nil {
		return err
	}

	loader, _, err := load(opts.dir)
	if err != nil {
		return err
	}

	results := catalog.Query(loader.Snapshot(), spec)

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHANNEL\tSOURCE\tORGS\tCLICK%\tRATING\tDIFFICULTY")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.1f\t%.1f\t%d\n",
			r.ID, r.Name, r.Channel, r.Source, r.Popularity, r.Effectiveness, r.Rating, r.Difficulty)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d template(s)\n", len(results))
	return nil
}

func runStats(out io.Writer, opts *options) error {
	loader, _, err := load(opts.dir)
	if err != nil {
		return err
	}

	snapshot := loader.Snapshot()
	summary := catalog.Summarize(snapshot)

	fmt.Fprintf(out, "templates:          %d\n", summary.TotalTemplates)
	fmt.Fprintf(out, "community:          %d\n", summary.CommunityTemplates)
	fmt.Fprintf(out, "avg click rate:     %.1f%%\n", summary.AverageEffectiveness)
	fmt.Fprintf(out, "organisations:      %d\n", summary.TotalPopularity)
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tCOUNT")
	for _, c := range catalog.ChannelCounts(snapshot) {
		fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
	}
	return tw.Flush()
}

func runValidate(out io.Writer, opts *options) error {
	_, result, err := load(opts.dir)
	if err != nil {
		return err
	}

	for _, rej := range result.Rejected {
		if rej.Index < 0 {
			fmt.Fprintf(out, "REJECT %s: %v\n", rej.File, rej.Err)
			continue
		}
		fmt.Fprintf(out, "REJECT %s[%d]: %v\n", rej.File, rej.Index, rej.Err)
	}
	fmt.Fprintf(out, "%d file(s), %d template(s) loaded, %d rejected\n",
		result.Files, result.Loaded, len(result.Rejected))

	if len(result.Rejected) > 0 {
		return fmt.Errorf("%d entries rejected", len(result.Rejected))
	}
	return nil
}
