// Package report turns inspection records into downloadable K3RS reports:
// a paginated PDF, a detailed workbook with embedded photos, and flat
// workbook and CSV listings.
//
// Every export is a pure transform of its inputs. Photos and the logo are
// fetched one at a time while rendering; a failed fetch is logged and
// substituted, never retried, and never fails the export.
package report

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"k3rs/backend/internal/inspection"
	"k3rs/backend/internal/institution"
)

// ErrUnknownFormat is returned for a format name no renderer handles.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names an output artifact kind.
type Format string

const (
	FormatPDF            Format = "pdf"
	FormatWorkbook       Format = "xlsx"
	FormatWorkbookSimple Format = "xlsx-simple"
	FormatCSV            Format = "csv"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// ParseFormat maps a request value onto a Format.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case FormatPDF, FormatWorkbook, FormatWorkbookSimple, FormatCSV:
		return f, nil
	case "excel":
		return FormatWorkbook, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, v)
	}
}

// Artifact is a rendered report ready to be served or written to disk.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Observer receives export outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ExportFinished(format Format, elapsed time.Duration, err error)
	PhotoFetched(format Format, ok bool)
}

type nopObserver struct{}

func (nopObserver) ExportFinished(Format, time.Duration, error) {}
func (nopObserver) PhotoFetched(Format, bool)                   {}

// Exporter renders reports. It holds configuration only and is safe for
// concurrent use; every call builds its own document.
type Exporter struct {
	profile    institution.Profile
	fetcher    Fetcher
	logoSource string
	logger     *zap.Logger
	observer   Observer
	now        func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Exporter) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock sets the clock used for signature dates and filenames.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogo sets the logo source: a file path or an http(s) URL.
func WithLogo(source string) Option {
	return func(e *Exporter) {
		e.logoSource = source
	}
}

// NewExporter builds an Exporter for profile. fetcher resolves photo URLs and
// remote logos; it may be nil, in which case every photo is unavailable.
func NewExporter(profile institution.Profile, fetcher Fetcher, opts ...Option) *Exporter {
	e := &Exporter{
		profile:  profile,
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export dispatches to the renderer for format.
func (e *Exporter) Export(ctx context.Context, format Format, records []inspection.Record, opts inspection.ReportOptions) (*Artifact, error) {
	switch format {
	case FormatPDF:
		return e.ExportPDF(ctx, records, opts)
	case FormatWorkbook:
		return e.ExportWorkbook(ctx, records, opts)
	case FormatWorkbookSimple:
		return e.ExportWorkbookSimple(ctx, records, opts)
	case FormatCSV:
		return e.ExportCSV(ctx, records, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExportPDF renders one section per group as Laporan_Temuan_K3RS_<date>.pdf.
func (e *Exporter) ExportPDF(ctx context.Context, records []inspection.Record, opts inspection.ReportOptions) (*Artifact, error) {
	return e.run(FormatPDF, "Laporan_Temuan_K3RS", ".pdf", contentTypePDF, func(now time.Time) ([]byte, error) {
		doc := newPDFDocument(now)
		doc.setLetterhead(e.profile.MastheadLines())
		if logo, size, ok := e.loadLogo(ctx); ok {
			doc.setLogo(logo, size)
		}
		parties := signatureParties(e.profile, opts.Signatory, now)
		load := e.loaderFor(ctx, FormatPDF, pdfPhotoPixelW, pdfPhotoPixelH)
		for _, s := range BuildSections(records, opts) {
			doc.section(s, e.profile.Hospital, parties, load)
		}
		return doc.bytes()
	})
}

// ExportWorkbook renders the summary sheet plus one sheet per record, ordered
// by inspection date, as Laporan_Inspeksi_K3RS_<date>.xlsx.
func (e *Exporter) ExportWorkbook(ctx context.Context, records []inspection.Record, opts inspection.ReportOptions) (*Artifact, error) {
	return e.run(FormatWorkbook, "Laporan_Inspeksi_K3RS", ".xlsx", contentTypeXLSX, func(now time.Time) ([]byte, error) {
		sorted := SortByDate(records)
		parties := signatureParties(e.profile, opts.Signatory, now)
		load := e.loaderFor(ctx, FormatWorkbook, sheetPhotoPixelW, sheetPhotoPixelH)

		wb, err := newDetailWorkbook(e.profile, parties, e.sheetLogo(ctx), now, load)
		if err != nil {
			return nil, err
		}
		defer wb.close()

		if err := wb.summary(BuildSummaryRows(sorted)); err != nil {
			return nil, err
		}
		for _, sheet := range BuildDetailSheets(sorted) {
			if err := wb.detail(sheet); err != nil {
				return nil, err
			}
		}
		return wb.bytes()
	})
}

// ExportWorkbookSimple renders every finding on one sheet as
// Laporan_K3RS_Simple_<date>.xlsx.
func (e *Exporter) ExportWorkbookSimple(_ context.Context, records []inspection.Record, _ inspection.ReportOptions) (*Artifact, error) {
	return e.run(FormatWorkbookSimple, "Laporan_K3RS_Simple", ".xlsx", contentTypeXLSX, func(now time.Time) ([]byte, error) {
		return renderSimpleWorkbook(BuildFlatRows(records), now)
	})
}

// ExportCSV renders the flat listing as Laporan_K3RS_Simple_<date>.csv.
func (e *Exporter) ExportCSV(_ context.Context, records []inspection.Record, _ inspection.ReportOptions) (*Artifact, error) {
	return e.run(FormatCSV, "Laporan_K3RS_Simple", ".csv", contentTypeCSV, func(time.Time) ([]byte, error) {
		return renderCSV(BuildFlatRows(records))
	})
}

func (e *Exporter) run(format Format, stem, ext, contentType string, render func(now time.Time) ([]byte, error)) (*Artifact, error) {
	start := time.Now()
	now := e.now()

	data, err := render(now)
	e.observer.ExportFinished(format, time.Since(start), err)
	if err != nil {
		e.logger.Error("report export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, fmt.Errorf("export %s: %w", format, err)
	}

	filename := fmt.Sprintf("%s_%s%s", stem, now.UTC().Format("2006-01-02"), ext)
	e.logger.Info("report exported",
		zap.String("format", string(format)),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Artifact{Filename: filename, ContentType: contentType, Data: data}, nil
}

// loaderFor fetches and normalises photos sequentially, logging and
// counting each outcome.
func (e *Exporter) loaderFor(ctx context.Context, format Format, w, h int) photoLoader {
	return func(p inspection.Photo) ([]byte, bool) {
		img, err := e.fetchPhoto(ctx, p.SignedURL, w, h)
		e.observer.PhotoFetched(format, err == nil)
		if err != nil {
			e.logger.Warn("photo unavailable",
				zap.String("format", string(format)),
				zap.String("url", redactURL(p.SignedURL)),
				zap.Error(err),
			)
			return nil, false
		}
		return img, true
	}
}

func (e *Exporter) fetchPhoto(ctx context.Context, url string, w, h int) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("photo has no url")
	}
	if e.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	raw, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return normalizePhoto(raw, w, h)
}

// loadLogo returns the logo as PNG, or false when it is unavailable.
func (e *Exporter) loadLogo(ctx context.Context) ([]byte, image.Point, bool) {
	if strings.TrimSpace(e.logoSource) == "" {
		return nil, image.Point{}, false
	}
	raw, err := loadAsset(ctx, e.fetcher, e.logoSource)
	if err == nil {
		var (
			png  []byte
			size image.Point
		)
		if png, size, err = normalizeLogo(raw); err == nil {
			return png, size, true
		}
	}
	e.logger.Warn("logo unavailable", zap.String("source", redactURL(e.logoSource)), zap.Error(err))
	return nil, image.Point{}, false
}

// sheetLogo is the workbook logo: the real one, else a generated badge, else
// nothing (the masthead then shows the label as text).
func (e *Exporter) sheetLogo(ctx context.Context) []byte {
	if logo, _, ok := e.loadLogo(ctx); ok {
		return logo
	}
	badge, err := placeholderLogo(e.profile.LogoLabel)
	if err != nil {
		e.logger.Warn("placeholder logo failed", zap.Error(err))
		return nil
	}
	return badge
}
