// Package export renders sessions to downloadable files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatmemo/internal/metrics"
	"chatmemo/internal/models"
	"chatmemo/internal/storage"
)

// ErrUnsupportedFormat is returned for formats other than json, csv and pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

type renderer func(buf *bytes.Buffer, session *models.Session) error

var renderers = map[Format]renderer{
	FormatJSON: renderJSON,
	FormatCSV:  renderCSV,
	FormatPDF:  renderPDF,
}

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatPDF:  "application/pdf",
}

// ParseFormat accepts json, csv and pdf in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := renderers[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// File describes a written export.
type File struct {
	Path        string
	Name        string
	ContentType string
}

// Mirror receives a copy of every export.
type Mirror interface {
	Put(ctx context.Context, name string, body []byte, contentType string) error
}

// Exporter writes exports/<id>_<YYYYmmdd_HHMMSS>.<ext> files.
type Exporter struct {
	dir    string
	mirror Mirror
	now    func() time.Time
}

func New(dir string, mirror Mirror) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports dir: %w", err)
	}
	return &Exporter{dir: dir, mirror: mirror, now: time.Now}, nil
}

func (e *Exporter) Dir() string { return e.dir }

func (e *Exporter) Export(ctx context.Context, session *models.Session, format string) (*File, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := renderers[f](&buf, session); err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}

	name := fmt.Sprintf("%s_%s.%s", session.ID, e.now().UTC().Format("20060102_150405"), f)
	path := filepath.Join(e.dir, name)
	if err := storage.WriteFile(path, buf.Bytes()); err != nil {
		return nil, err
	}
	metrics.RecordExport(string(f))

	out := &File{Path: path, Name: name, ContentType: contentTypes[f]}
	if e.mirror != nil {
		if err := e.mirror.Put(ctx, name, buf.Bytes(), out.ContentType); err != nil {
			log.Printf("mirror export %s failed: %v", name, err)
		}
	}
	return out, nil
}
