// Command lattice extracts tables from PDF documents.
//
//	lattice extract invoice.pdf --format csv --output tables.csv
//	lattice fields invoice.pdf
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cdehaan/lattice"
	"github.com/cdehaan/lattice/fields"
	"github.com/cdehaan/lattice/session"
)

var log = logrus.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lattice",
		Short:         "Extract tables from PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(extractCmd(), fieldsCmd())
	return root
}

type extractFlags struct {
	format         string
	output         string
	pages          []int
	mergeThreshold float64
	typeThreshold  float64
	pageTimeoutMS  int
	workers        int
	noTypes        bool
	ocr            bool
	ocrLanguage    string
}

func extractCmd() *cobra.Command {
	var flags extractFlags

	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract tables and write them to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "csv", "output format: csv, tsv, markdown, json")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntSliceVarP(&flags.pages, "pages", "p", nil, "pages to extract, 1-indexed (default all)")
	cmd.Flags().Float64Var(&flags.mergeThreshold, "merge-threshold", 0.5, "region overlap fraction at which regions merge")
	cmd.Flags().Float64Var(&flags.typeThreshold, "type-threshold", 0.8, "fraction of parseable cells required to type a column")
	cmd.Flags().IntVar(&flags.pageTimeoutMS, "page-timeout-ms", 0, "per-page detection deadline in milliseconds (0 disables)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "page worker pool size (0 means one per core)")
	cmd.Flags().BoolVar(&flags.noTypes, "no-types", false, "disable column type inference")
	cmd.Flags().BoolVar(&flags.ocr, "ocr", false, "OCR pages with no embedded text (needs an ocr-tagged build)")
	cmd.Flags().StringVar(&flags.ocrLanguage, "ocr-language", "", "OCR language, e.g. eng or eng+fra")

	return cmd
}

func runExtract(filename string, flags extractFlags) error {
	format, err := session.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	extractor := lattice.Open(filename).
		MergeThreshold(flags.mergeThreshold).
		TypeThreshold(flags.typeThreshold).
		Workers(flags.workers)
	if len(flags.pages) > 0 {
		extractor = extractor.Pages(flags.pages...)
	}
	if flags.pageTimeoutMS > 0 {
		extractor = extractor.PageTimeout(time.Duration(flags.pageTimeoutMS) * time.Millisecond)
	}
	if flags.noTypes {
		extractor = extractor.NoTypeInference()
	}
	if flags.ocr {
		extractor = extractor.WithOCR(flags.ocrLanguage)
	}

	start := time.Now()
	sess, err := extractor.Extract(contextFromSignals())
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"tables":   sess.Count(),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("extraction complete")

	for _, warning := range sess.Warnings() {
		log.Warn(warning.String())
	}

	out := os.Stdout
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", flags.output, err)
		}
		defer f.Close()
		out = f
	}

	if sess.Count() == 0 {
		log.Info("no tables found")
		return nil
	}
	return session.ExportAll(out, sess, format)
}

func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <file.pdf>",
		Short: "Capture invoice header fields from extracted tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := lattice.Open(args[0]).Extract(contextFromSignals())
			if err != nil {
				return err
			}
			for _, warning := range sess.Warnings() {
				log.Warn(warning.String())
			}

			captured := fields.NewScanner().Scan(sess.Tables())
			if len(captured) == 0 {
				log.Info("no fields matched")
				return nil
			}
			fmt.Println(fields.Format(captured))
			return nil
		},
	}
}
