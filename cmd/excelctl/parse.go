package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

type parseOptions struct {
	sheet      string
	output     string
	pretty     bool
	preview    int
	sampleSize int
}

// newParseCmd parses a workbook offline with the same parser and classifier
// the server uses and prints the result as JSON.
func newParseCmd() *cobra.Command {
	var opts parseOptions
	cmd := &cobra.Command{
		Use:   "parse [input.xlsx]",
		Short: "Parse a workbook and print its records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Sheet to read (default: first sheet)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().IntVar(&opts.preview, "preview", -1, "Only print the first N records (-1 prints all)")
	cmd.Flags().IntVar(&opts.sampleSize, "sample-size", ingest.DefaultClassifier().SampleSize, "Values per column sampled for type inference")
	return cmd
}

func runParse(w io.Writer, path string, opts parseOptions) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}

	classifier := ingest.DefaultClassifier()
	if opts.sampleSize > 0 {
		classifier.SampleSize = opts.sampleSize
	}
	res, err := ingest.NewParser(classifier).Parse(path, ingest.Options{SheetName: opts.sheet})
	if err != nil {
		return err
	}
	res.Data = res.Preview(opts.preview)

	var data []byte
	if opts.pretty {
		data, err = json.MarshalIndent(res, "", "  ")
	} else {
		data, err = json.Marshal(res)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
