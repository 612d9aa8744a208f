package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var ErrOCRUnavailable = errors.New("ocr tools are not installed")

// Tesseract runs the tesseract CLI. PDFs are rasterized with pdftoppm first.
type Tesseract struct {
	Binary   string
	PDFToPPM string
	Language string
	DPI      int
}

func (t *Tesseract) binaries() (string, string, string, int) {
	bin, ppm, lang, dpi := t.Binary, t.PDFToPPM, t.Language, t.DPI
	if bin == "" {
		bin = "tesseract"
	}
	if ppm == "" {
		ppm = "pdftoppm"
	}
	if lang == "" {
		lang = "eng"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return bin, ppm, lang, dpi
}

func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	bin, ppm, lang, dpi := t.binaries()

	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("%w: %s", ErrOCRUnavailable, bin)
	}

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return run(ctx, bin, path, "stdout", "-l", lang)
	}

	if _, err := exec.LookPath(ppm); err != nil {
		return "", fmt.Errorf("%w: %s", ErrOCRUnavailable, ppm)
	}

	dir, err := os.MkdirTemp("", "hr-screener-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	if _, err := run(ctx, ppm, "-r", strconv.Itoa(dpi), "-png", path, filepath.Join(dir, "page")); err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", err)
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return "", err
	}
	sort.Strings(pages)

	var b strings.Builder
	for _, page := range pages {
		text, err := run(ctx, bin, page, "stdout", "-l", lang)
		if err != nil {
			return "", fmt.Errorf("recognize %s: %w", filepath.Base(page), err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return stdout.String(), nil
}
