// pdf2xml runs one extraction directly, without the queue: one PDF in, one
// session directory out, the manifest printed to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docstream/pdfextract-worker/internal/config"
	"github.com/docstream/pdfextract-worker/internal/processor"
	"github.com/docstream/pdfextract-worker/internal/storage"
)

var flags struct {
	input        string
	outdir       string
	startPage    int
	endPage      int
	ocrThreshold int
	dpi          int
	ocrLang      string
	ocrPSM       int
	ocrOEM       int
	tables       string
	maxSessions  int
	maxAgeHours  float64
	noCleanup    bool
	quiet        bool
}

func main() {
	root := &cobra.Command{
		Use:   "pdf2xml",
		Short: "Extract a PDF into structured XML with OCR and table fallback",
		Long: `pdf2xml converts a PDF into a session directory containing a combined
XML document, per-page table files, extracted image assets and a run
manifest. Pages are processed one at a time so memory stays flat even for
very large documents.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().StringVar(&flags.input, "input", "", "input PDF path")
	root.Flags().StringVar(&flags.outdir, "outdir", "", "output base directory")
	root.Flags().IntVar(&flags.startPage, "start-page", 1, "first page to process (1-based)")
	root.Flags().IntVar(&flags.endPage, "end-page", 0, "last page to process (0 = to end)")
	root.Flags().IntVar(&flags.ocrThreshold, "ocr-threshold", 40, "minimum native text length before OCR escalation")
	root.Flags().IntVar(&flags.dpi, "dpi", 300, "render resolution for OCR")
	root.Flags().StringVar(&flags.ocrLang, "ocr-lang", "eng", "OCR languages, plus-separated (eng+deu)")
	root.Flags().IntVar(&flags.ocrPSM, "ocr-psm", 3, "Tesseract page segmentation mode")
	root.Flags().IntVar(&flags.ocrOEM, "ocr-oem", 3, "Tesseract OCR engine mode")
	root.Flags().StringVar(&flags.tables, "tables", "lattice,stream,textgrid", "table engine chain, comma-separated")
	root.Flags().IntVar(&flags.maxSessions, "max-sessions", 5, "retained session count, excluding the current one")
	root.Flags().Float64Var(&flags.maxAgeHours, "max-age-hours", 24, "maximum retained session age in hours")
	root.Flags().BoolVar(&flags.noCleanup, "no-cleanup", false, "skip session cleanup after the run")
	root.Flags().BoolVar(&flags.quiet, "quiet", false, "suppress progress output")

	root.MarkFlagRequired("input")
	root.MarkFlagRequired("outdir")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pdf2xml: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	opts := config.RunOptions{
		Source:         flags.input,
		BaseDir:        flags.outdir,
		StartPage:      flags.startPage,
		EndPage:        flags.endPage,
		OCRThreshold:   flags.ocrThreshold,
		OCRLanguages:   config.SplitList(flags.ocrLang, "+"),
		OCRPageSegMode: flags.ocrPSM,
		OCREngineMode:  flags.ocrOEM,
		RenderDPI:      flags.dpi,
		TableEngines:   config.SplitList(flags.tables, ","),
		MaxSessions:    flags.maxSessions,
		MaxAgeHours:    flags.maxAgeHours,
		CleanupOnExit:  !flags.noCleanup,
	}

	proc := processor.NewProcessor()
	proc.AddRecorder(storage.NewJSONLStore(opts.BaseDir))
	if !flags.quiet {
		opts.Progress = func(done, total int) {
			log.Printf("page %d/%d", done, total)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manifest, err := proc.Run(ctx, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
