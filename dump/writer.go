// Package dump writes replayable SQL backups.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alc6/sqlsnap/engine"
)

// bufferSize bounds buffered output; writes past it block on the file.
const bufferSize = 64 * 1024

var ErrWriterClosed = errors.New("writer is closed")

// Header describes the backup in the file's leading comment block.
type Header struct {
	Engine   engine.Type
	Database string
	Schema   string
}

// Writer is the sequential sink for one backup file. It is not safe for
// concurrent use.
type Writer struct {
	dir       string
	header    Header
	generator engine.Generator
	now       func() time.Time

	path    string
	file    *os.File
	buf     *bufio.Writer
	restore string
	closed  bool
}

func NewWriter(dir string, header Header, generator engine.Generator) *Writer {
	return &Writer{
		dir:       dir,
		header:    header,
		generator: generator,
		now:       time.Now,
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the backup file name for a database at a given time, at
// minute resolution.
func FileName(database string, at time.Time) string {
	name := unsafeName.ReplaceAllString(database, "_")
	if name == "" {
		name = "backup"
	}
	return fmt.Sprintf("%s_%s.sql", name, at.Format("20060102_1504"))
}

// Path returns the file path, set by Open.
func (w *Writer) Path() string {
	return w.path
}

// Open creates the file and writes the header and the integrity bypass
// directive. Engines without a session bypass get an explanatory comment;
// constraints are created after the data either way.
func (w *Writer) Open() error {
	if w.file != nil {
		return errors.New("writer already open")
	}

	at := w.now()
	w.path = filepath.Join(w.dir, FileName(w.header.Database, at))

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	w.file = file
	w.buf = bufio.NewWriterSize(file, bufferSize)

	var sb strings.Builder
	sb.WriteString("-- sqlsnap backup\n")
	fmt.Fprintf(&sb, "-- Engine: %s\n", w.header.Engine)
	fmt.Fprintf(&sb, "-- Database: %s\n", w.header.Database)
	if w.header.Schema != "" {
		fmt.Fprintf(&sb, "-- Schema: %s\n", w.header.Schema)
	}
	fmt.Fprintf(&sb, "-- Generated: %s\n", at.Format(time.RFC3339))
	sb.WriteString("\n")

	disable, restore, err := w.generator.IntegrityBypass()
	switch {
	case err == nil:
		sb.WriteString(disable + "\n\n")
		w.restore = restore
	case engine.IsUnsupported(err):
		fmt.Fprintf(&sb, "-- %v\n-- constraints are created after the data is loaded\n\n", err)
	default:
		return errors.Join(fmt.Errorf("failed to render integrity bypass: %w", err), w.closeFile())
	}

	slog.Debug("backup file opened", "path", w.path)
	return w.Write(sb.String())
}

// Write appends text. It blocks while the buffer drains to the file.
func (w *Writer) Write(text string) error {
	if w.closed || w.buf == nil {
		return ErrWriterClosed
	}
	if _, err := w.buf.WriteString(text); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Close restores integrity enforcement, writes the footer and closes the
// file. Later calls are no-ops.
func (w *Writer) Close() error {
	if w.closed || w.buf == nil {
		return nil
	}

	var sb strings.Builder
	if w.restore != "" {
		sb.WriteString("\n" + w.restore + "\n")
	}
	fmt.Fprintf(&sb, "\n-- backup completed: %s\n", w.now().Format(time.RFC3339))

	if err := w.Write(sb.String()); err != nil {
		return errors.Join(err, w.closeFile())
	}
	if err := w.closeFile(); err != nil {
		return err
	}
	slog.Debug("backup file closed", "path", w.path)
	return nil
}

// Abort records the failure at the end of the file and closes it without a
// footer. The partial file is left in place.
func (w *Writer) Abort(cause error) error {
	if w.closed || w.buf == nil {
		return nil
	}

	msg := "unknown error"
	if cause != nil {
		msg = strings.ReplaceAll(cause.Error(), "\n", " ")
	}
	werr := w.Write(fmt.Sprintf("\n-- backup aborted: %s\n", msg))
	return errors.Join(werr, w.closeFile())
}

func (w *Writer) closeFile() error {
	w.closed = true
	var flushErr error
	if w.buf != nil {
		flushErr = w.buf.Flush()
	}
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush backup file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close backup file: %w", closeErr)
	}
	return nil
}
