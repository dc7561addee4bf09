package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/ingest"
	"github.com/hupe1980/ccvec/model"
)

var (
	searchK         int
	searchMinScore  float64
	searchResolved  string
	searchSentiment string

	indexBatch string
	pruneKeep  int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search transcripts similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := searchFilters(cmd)
		if err != nil {
			return err
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		results, err := a.db.Search(cmd.Context(), args[0], searchK, filters)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), results)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSIMILARITY\tCSAT\tFCR\tSENTIMENT")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%.4f\t%.1f\t%t\t%s\n", r.ID, r.Similarity, r.Metadata.CSAT, r.Metadata.Resolved, r.Metadata.Sentiment)
		}
		return w.Flush()
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [id] [source-key]",
	Short: "Index transcripts from blob storage",
	Long: `Index a single transcript document, or every request listed in a JSON
batch file ([{"id": "...", "sourceKey": "..."}]) with --batch.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if indexBatch != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var reqs []ingest.Request
		if indexBatch != "" {
			data, err := os.ReadFile(indexBatch)
			if err != nil {
				return fmt.Errorf("failed to read batch: %w", err)
			}
			if err := codec.Default.Unmarshal(data, &reqs); err != nil {
				return fmt.Errorf("failed to parse batch: %w", err)
			}
		} else {
			reqs = []ingest.Request{{ID: args[0], SourceKey: args[1]}}
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		n, err := a.pipeline.IndexAll(cmd.Context(), reqs)
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d\n", n, len(reqs))
		return err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics of the committed index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		st, err := a.db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), st)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Version:\t%d\n", st.Version)
		fmt.Fprintf(w, "Records:\t%d\n", st.Count)
		fmt.Fprintf(w, "Kind:\t%s\n", st.Kind)
		fmt.Fprintf(w, "Scale:\t%s\n", st.Scale)
		fmt.Fprintf(w, "Dimension:\t%d\n", st.Dimension)
		if !st.CommittedAt.IsZero() {
			fmt.Fprintf(w, "Committed:\t%s\n", st.CommittedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete blobs of superseded index versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		keep := pruneKeep
		if keep == 0 {
			keep = a.cfg.Index.Prune.Keep
		}
		res, err := a.db.Prune(cmd.Context(), keep)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d blobs, kept %d\n", len(res.Deleted), res.Kept)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 10, "number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum CSAT score")
	searchCmd.Flags().StringVar(&searchResolved, "resolved", "", "filter by first-call resolution (true, false)")
	searchCmd.Flags().StringVar(&searchSentiment, "sentiment", "", "filter by sentiment (positive, neutral, negative)")

	indexCmd.Flags().StringVar(&indexBatch, "batch", "", "JSON file with index requests")

	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "committed versions to keep (default from config)")
}

func searchFilters(cmd *cobra.Command) (model.FilterSet, error) {
	var fs model.FilterSet
	if cmd.Flags().Changed("min-score") {
		fs = fs.WithMinScore(searchMinScore)
	}
	switch searchResolved {
	case "":
	case "true":
		fs = fs.WithResolved(true)
	case "false":
		fs = fs.WithResolved(false)
	default:
		return fs, fmt.Errorf("--resolved: want true or false, got %q", searchResolved)
	}
	if searchSentiment != "" {
		s, err := model.ParseSentiment(searchSentiment)
		if err != nil {
			return fs, fmt.Errorf("--sentiment: %w", err)
		}
		fs = fs.WithSentiment(s)
	}
	return fs, nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
