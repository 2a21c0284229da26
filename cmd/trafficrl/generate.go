package main

import (
	"fmt"
	"path/filepath"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/trafficrl/dataset"
)

// generate writes a synthetic table of rows roundabout observations to
// the spreadsheet at path
func generate(path string, rows int) error {
	data, err := dataset.Generate(rows, dataset.DefaultGeneratorConfig(), seed)
	if err != nil {
		return err
	}
	if err := data.WriteXLSX(path); err != nil {
		return err
	}

	fmt.Println(aurora.Green(fmt.Sprintf("Wrote %d rows to %v", rows, path)))
	return nil
}

func GenerateCommand() *cobra.Command {
	var rows int
	var name string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic roundabout traffic spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(filepath.Join(outDir, name), rows)
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 1000, "number of rows")
	cmd.Flags().StringVar(&name, "name", "synthetic_roundabout_traffic.xlsx",
		"name of the spreadsheet")
	return cmd
}
