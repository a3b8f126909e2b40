// Package snapshot stores encoded saves on disk. A file is a zstd stream whose
// first line is a JSON header; the binary save follows the newline.
package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	Version = 1
	Format  = "CSHAPEZ_SAVE"

	fileSuffix = ".snap.zst"
	maxHeader  = 64 * 1024
)

var ErrCorrupt = errors.New("snapshot: corrupt file")

type Header struct {
	Version int    `json:"version"`
	Format  string `json:"format"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Size    int    `json:"size"`
	SHA256  string `json:"sha256"`

	Devices int   `json:"devices"`
	Stalled int   `json:"stalled"`
	Money   int64 `json:"money"`
}

func Digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Dir is where a world keeps its snapshots.
func Dir(worldDir string) string { return filepath.Join(worldDir, "snapshots") }

// Path names the snapshot taken at tick.
func Path(worldDir string, tick uint64) string {
	return filepath.Join(Dir(worldDir), fmt.Sprintf("%d%s", tick, fileSuffix))
}

// Write stores payload under path, replacing any previous file atomically.
// Size, SHA256, Version and Format are filled in from payload.
func Write(path string, h Header, payload []byte) (Header, error) {
	h.Version = Version
	h.Format = Format
	h.Size = len(payload)
	h.SHA256 = Digest(payload)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return h, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+fileSuffix)
	if err != nil {
		return h, err
	}
	defer os.Remove(tmp.Name())

	if err := writeTo(tmp, h, payload); err != nil {
		_ = tmp.Close()
		return h, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return h, err
	}
	if err := tmp.Close(); err != nil {
		return h, err
	}
	return h, os.Rename(tmp.Name(), path)
}

func writeTo(w io.Writer, h Header, payload []byte) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(h)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read loads a snapshot and checks the payload against the header digest.
func Read(path string) (Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	h, err := readHeader(br)
	if err != nil {
		return h, nil, err
	}
	payload, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(payload) != h.Size || Digest(payload) != h.SHA256 {
		return h, nil, fmt.Errorf("%w: payload does not match header digest", ErrCorrupt)
	}
	return h, payload, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) || len(line) >= maxHeader {
			return h, fmt.Errorf("%w: header too long", ErrCorrupt)
		}
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return h, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if h.Format != Format || h.Version != Version {
		return h, fmt.Errorf("%w: format %q version %d", ErrCorrupt, h.Format, h.Version)
	}
	return h, nil
}

type Entry struct {
	Path string
	Tick uint64
}

// List returns the snapshots under worldDir ordered by tick.
func List(worldDir string) ([]Entry, error) {
	ents, err := os.ReadDir(Dir(worldDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Entry{Path: filepath.Join(Dir(worldDir), name), Tick: tick})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

// Latest returns the path of the newest snapshot, or "" when there is none.
func Latest(worldDir string) string {
	ents, err := List(worldDir)
	if err != nil || len(ents) == 0 {
		return ""
	}
	return ents[len(ents)-1].Path
}

// Prune deletes all but the newest keep snapshots and returns the removed
// paths. keep <= 0 disables pruning.
func Prune(worldDir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	ents, err := List(worldDir)
	if err != nil || len(ents) <= keep {
		return nil, err
	}
	var removed []string
	for _, e := range ents[:len(ents)-keep] {
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}
