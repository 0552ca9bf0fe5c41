package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/excel-analytics/internal/logging"
)

// DefaultMaxFileSize is the upload ceiling when none is configured (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// AcceptedMIMETypes are the declared content types the gateway lets through.
// They are compared verbatim.
var AcceptedMIMETypes = []string{
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Upload is one incoming file as declared by the client.
type Upload struct {
	Reader       io.Reader
	OriginalName string
	MimeType     string
	Size         int64
	SheetName    string
}

// Stored locates the spooled copy of an accepted upload.
type Stored struct {
	Path     string
	Filename string
	Size     int64
}

// Gateway validates uploads and runs them through the Parser.
type Gateway struct {
	dir         string
	maxFileSize int64
	parser      *Parser
	now         func() time.Time
}

// NewGateway creates a Gateway that spools accepted files into dir.
// A non-positive maxFileSize falls back to DefaultMaxFileSize.
func NewGateway(dir string, maxFileSize int64, parser *Parser) (*Gateway, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Gateway{
		dir:         dir,
		maxFileSize: maxFileSize,
		parser:      parser,
		now:         time.Now,
	}, nil
}

// MaxFileSize returns the configured ceiling in bytes.
func (g *Gateway) MaxFileSize() int64 {
	return g.maxFileSize
}

// Validate checks the declared type and size without reading anything.
func (g *Gateway) Validate(mimeType string, size int64) error {
	if !slices.Contains(AcceptedMIMETypes, mimeType) {
		return ErrInvalidFileType
	}
	if size > g.maxFileSize {
		return fileTooLarge(g.maxFileSize)
	}
	return nil
}

// Ingest validates, spools and parses one upload.
//
// Rejected uploads never reach the disk or the Parser. When parsing fails
// the spooled file is removed and the parser error is returned unchanged.
// On success the file stays where Stored points; removing it is the
// caller's job.
//
// The parse is not cancellable: ctx only scopes logging.
func (g *Gateway) Ingest(ctx context.Context, up Upload) (*Stored, *ParseResult, error) {
	log := logging.WithFields(ctx, "file", up.OriginalName, "size", up.Size)

	if err := g.Validate(up.MimeType, up.Size); err != nil {
		log.Info("upload rejected", "mime_type", up.MimeType, "error", err)
		return nil, nil, err
	}

	stored, err := g.spool(up)
	if err != nil {
		return nil, nil, err
	}

	res, err := g.parser.Parse(stored.Path, Options{SheetName: up.SheetName})
	if err != nil {
		g.Remove(stored.Path)
		log.Warn("upload parse failed", "error", err)
		return nil, nil, err
	}

	log.Info("upload parsed",
		"stored_as", stored.Filename,
		"sheet", res.SelectedSheet,
		"rows", res.RowCount,
		"columns", len(res.Columns),
	)
	return stored, res, nil
}

// Reparse parses an already stored file, e.g. to switch sheets.
func (g *Gateway) Reparse(path, sheet string) (*ParseResult, error) {
	return g.parser.Parse(path, Options{SheetName: sheet})
}

// Remove deletes a stored file. A missing file is not an error.
func (g *Gateway) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload %s: %w", filepath.Base(path), err)
	}
	return nil
}

// spool copies the stream to a uniquely named file. A stream that runs past
// the ceiling is treated as too large regardless of the declared size.
func (g *Gateway) spool(up Upload) (*Stored, error) {
	name := fmt.Sprintf("file-%d-%d%s",
		g.now().UnixMilli(),
		rand.Int64N(1e9),
		strings.ToLower(filepath.Ext(up.OriginalName)),
	)
	path := filepath.Join(g.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(up.Reader, g.maxFileSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if n > g.maxFileSize {
		os.Remove(path)
		return nil, fileTooLarge(g.maxFileSize)
	}

	return &Stored{Path: path, Filename: name, Size: n}, nil
}
