// Command k3rs-export renders a K3RS report from a JSON dump of inspection
// records without a database.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"k3rs/backend/internal/config"
	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/institution"
	"k3rs/backend/internal/report"
)

type exportFlags struct {
	input         string
	outDir        string
	month         string
	template      string
	signatoryName string
	signatoryNIP  string
	profile       string
	logo          string
	timeout       time.Duration
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:       "k3rs-export {pdf|xlsx|xlsx-simple|csv}",
		Short:     "Render a K3RS inspection report from a JSON records file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pdf", "xlsx", "xlsx-simple", "csv"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), args[0], f)
		},
		SilenceUsage: true,
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "JSON file with an array of inspection records (- for stdin)")
	fl.StringVarP(&f.outDir, "out", "o", ".", "directory the artifact is written to")
	fl.StringVar(&f.month, "month", "", "period label, or YYYY-MM to derive one")
	fl.StringVar(&f.template, "template", string(inspection.TemplateByTypeDate), "pdf grouping: by-type or by-type-date")
	fl.StringVar(&f.signatoryName, "signatory-name", "", "override the first signatory's name")
	fl.StringVar(&f.signatoryNIP, "signatory-nip", "", "override the first signatory's NIP")
	fl.StringVar(&f.profile, "profile", "", "institution profile YAML (defaults to the built-in profile)")
	fl.StringVar(&f.logo, "logo", "", "logo file path or URL")
	fl.DurationVar(&f.timeout, "photo-timeout", 15*time.Second, "per-photo fetch timeout")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runExport(ctx context.Context, stdout io.Writer, formatArg string, f exportFlags) error {
	format, err := report.ParseFormat(formatArg)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(f.logLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	records, err := readRecords(f.input, os.Stdin)
	if err != nil {
		return err
	}
	profile, err := institution.Load(f.profile)
	if err != nil {
		return err
	}

	opts := inspection.ReportOptions{
		Month:    f.month,
		Template: inspection.ParseTemplate(f.template),
	}
	if label, ok := report.MonthLabelFromFilter(f.month); ok {
		opts.Month = label
	}
	if f.signatoryName != "" || f.signatoryNIP != "" {
		opts.Signatory = &inspection.Signatory{Name: f.signatoryName, NIP: f.signatoryNIP}
	}

	fetcher := report.NewHTTPFetcher(report.FetcherConfig{Timeout: f.timeout})
	defer fetcher.CloseIdleConnections()

	exporter := report.NewExporter(profile, fetcher, report.WithLogger(logger), report.WithLogo(f.logo))
	art, err := exporter.Export(ctx, format, records, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(f.outDir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("report written", zap.String("path", path), zap.Int("records", len(records)))
	_, err = fmt.Fprintln(stdout, path)
	return err
}

// readRecords accepts a bare JSON array or an object with a "records" array.
func readRecords(path string, stdin io.Reader) ([]inspection.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Records []inspection.Record `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return wrapped.Records, nil
	}

	var records []inspection.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
