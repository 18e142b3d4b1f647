package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/YuminosukeSato/binclass/internal/app"
	"github.com/YuminosukeSato/binclass/internal/dataset"
	"github.com/YuminosukeSato/binclass/internal/terminal"
)

func newDataCommand(e *env) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Print the raw dataset preview and class balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := e.store.Get(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			terminal.WriteTable(out, &app.RawView{
				Title:     dataset.Title,
				Columns:   ds.Columns(),
				Rows:      ds.RawRows(rows),
				TotalRows: ds.NRows(),
			})

			p := message.NewPrinter(language.English)
			counts := ds.ClassCounts()
			labels := make([]string, 0, len(counts))
			for label := range counts {
				labels = append(labels, label)
			}
			slices.Sort(labels)
			for _, label := range labels {
				fmt.Fprintln(out, p.Sprintf("%s: %d", label, counts[label])) //nolint:errcheck
			}
			fmt.Fprintln(out, dataset.Description) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 10, "Number of rows to print (0 prints every row)")
	return cmd
}
