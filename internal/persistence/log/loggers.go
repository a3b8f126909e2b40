// Package log persists the world's tick and audit streams as hourly rotated,
// zstd-compressed JSONL files.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

const fileSuffix = ".jsonl.zst"

// JSONLZstdWriter appends one JSON document per line to
// <dir>/<prefix>-<YYYY-MM-DD-HH>.jsonl.zst, starting a new file each UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	lines   uint64
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

// SetClock replaces the time source used to pick the current file.
func (w *JSONLZstdWriter) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now != nil {
		w.now = now
	}
}

// Lines reports how many documents were written since construction.
func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	// Flushing the zstd encoder per line keeps a crash from losing more than
	// the entry in progress.
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", w.prefix, hour, fileSuffix))
}

// Files lists the rotated files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadJSONL decodes every line of a rotated file into fn. A file appended to
// across restarts holds several zstd frames; the decoder reads them in turn.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 1 {
			if ferr := fn(line[:len(line)-1]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// TickLogger writes one entry per eventful tick under <worldDir>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(TickDir(worldDir), TickPrefix)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes placement, removal, ratio and stall records under
// <worldDir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(AuditDir(worldDir), AuditPrefix)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

const (
	TickPrefix  = "ticks"
	AuditPrefix = "audit"
)

func TickDir(worldDir string) string  { return filepath.Join(worldDir, "ticks") }
func AuditDir(worldDir string) string { return filepath.Join(worldDir, "audit") }

// ReadAudits returns every audit entry stored for a world, oldest first.
func ReadAudits(worldDir string) ([]world.AuditEntry, error) {
	files, err := Files(AuditDir(worldDir), AuditPrefix)
	if err != nil {
		return nil, err
	}
	var out []world.AuditEntry
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
