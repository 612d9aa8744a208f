// Package extract turns resume files into plain text and a contact email.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/logger"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
	FormatOCR  Format = "ocr"
)

var (
	ErrNoText      = errors.New("no text found in document")
	ErrUnsupported = errors.New("unsupported document format")
)

// Document is the text content of one resume.
type Document struct {
	Path   string
	Text   string
	Email  string
	Format Format
	OCR    bool
}

// HasEmail reports whether an address was found in the text.
func (d *Document) HasEmail() bool {
	return d != nil && d.Email != "" && d.Email != EmailNotFound
}

// Error is returned for every failed extraction.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failure: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// OCR recognizes text in documents that carry no text layer.
type OCR interface {
	Recognize(ctx context.Context, path string) (string, error)
}

type reader func(path string) (string, error)

type Extractor struct {
	readers map[string]reader
	ocr     OCR
	logger  *zap.Logger
}

// New returns an extractor for PDF, DOCX and plain text files. ocr may be nil,
// in which case files without a text layer fail with ErrNoText.
func New(ocr OCR, l *zap.Logger) *Extractor {
	return &Extractor{
		readers: map[string]reader{
			".pdf":  readPDF,
			".docx": readDOCX,
			".txt":  readPlain,
			".md":   readPlain,
		},
		ocr:    ocr,
		logger: logger.OrNop(l),
	}
}

func formatOf(ext string) Format {
	switch ext {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	default:
		return FormatText
	}
}

func (e *Extractor) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: is a directory", ErrUnsupported)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	doc := &Document{Path: path}

	var readErr error
	if read, ok := e.readers[ext]; ok {
		text, err := read(path)
		if err != nil {
			readErr = err
			e.logger.Warn("text extraction failed, trying OCR",
				zap.String("path", path),
				zap.String("format", ext),
				zap.Error(err),
			)
		}
		doc.Text = normalize(text)
		doc.Format = formatOf(ext)
	} else {
		readErr = fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	if doc.Text == "" {
		if e.ocr == nil {
			if readErr != nil {
				return nil, &Error{Path: path, Err: readErr}
			}
			return nil, &Error{Path: path, Err: ErrNoText}
		}

		e.logger.Debug("falling back to OCR", zap.String("path", path))

		text, err := e.ocr.Recognize(ctx, path)
		if err != nil {
			return nil, &Error{Path: path, Err: fmt.Errorf("ocr: %w", err)}
		}

		doc.Text = normalize(text)
		doc.Format = FormatOCR
		doc.OCR = true
	}

	if doc.Text == "" {
		return nil, &Error{Path: path, Err: ErrNoText}
	}

	doc.Email = FindEmail(doc.Text)

	e.logger.Debug("document extracted",
		zap.String("path", path),
		zap.String("format", string(doc.Format)),
		zap.Int("text_length", len(doc.Text)),
		zap.Bool("email_found", doc.HasEmail()),
	)

	return doc, nil
}

func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// normalize trims every line and drops blank ones.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
