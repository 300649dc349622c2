package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/services"
)

func importCmd() *cobra.Command {
	var (
		replace bool
		preview int
	)
	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Load a dataset file into the store and print a preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer f.Close()

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Services.Dataset.Upload(cmd.Context(), services.UploadInput{
				Filename: filepath.Base(args[0]),
				Body:     f,
				Replace:  replace,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printUpload(out, res)

			if preview <= 0 {
				return nil
			}
			records, err := a.Services.Dataset.Records(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nStored rows: %d (showing %d)\n", len(records), min(preview, len(records)))
			return printPreview(out, records, preview)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "clear the stored dataset before loading")
	cmd.Flags().IntVar(&preview, "preview", 5, "number of stored rows to print (0 disables)")
	return cmd
}

func printUpload(w io.Writer, res *services.UploadResult) {
	fmt.Fprintf(w, "Batch %s: %d rows saved, %d rejected\n", res.Batch.ID, res.RowsSaved, res.RowsRejected)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE COLUMN\tSTORED AS")
	for _, src := range sortedKeys(res.Columns) {
		fmt.Fprintf(tw, "%s\t%s\n", src, res.Columns[src])
	}
	_ = tw.Flush()

	if len(res.InvalidValues) > 0 {
		fmt.Fprintln(w, "Values that could not be parsed (stored as missing):")
		for _, col := range sortedKeys(res.InvalidValues) {
			fmt.Fprintf(w, "  %s: %d\n", col, res.InvalidValues[col])
		}
	}
}

func printPreview(w io.Writer, records []*types.CropRecord, n int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(dataset.CanonicalColumns, "\t")))
	for i, r := range records {
		if i >= n {
			break
		}
		cells := make([]string, len(dataset.CanonicalColumns))
		for j, col := range dataset.CanonicalColumns {
			cells[j] = cell(r, col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func cell(r *types.CropRecord, col string) string {
	if dataset.IsNumeric(col) {
		if v, ok := r.Numeric(col); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return "-"
	}
	if s, ok := r.Category(col); ok && s != "" {
		return s
	}
	return "-"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
