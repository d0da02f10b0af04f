package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelcraft.ai/signdump/internal/pipeline"
	"voxelcraft.ai/signdump/internal/region"
)

// FileEntry is one processed region file.
type FileEntry struct {
	RunID      string `json:"run_id"`
	File       string `json:"file"`
	RegionX    *int   `json:"region_x,omitempty"`
	RegionZ    *int   `json:"region_z,omitempty"`
	Bytes      int    `json:"bytes"`
	Chunks     int    `json:"chunks"`
	Signs      int    `json:"signs"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	FinishedAt string `json:"finished_at"`
}

// SummaryEntry closes a report.
type SummaryEntry struct {
	RunID    string `json:"run_id"`
	Summary  bool   `json:"summary"`
	Files    int    `json:"files"`
	OK       int    `json:"ok"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
	Chunks   int    `json:"chunks"`
	Signs    int    `json:"signs"`
	Bytes    int64  `json:"bytes"`
	Elapsed  string `json:"elapsed"`
	Finished string `json:"finished_at"`
}

// JSONLZstdWriter appends JSON lines to one zstd-compressed file. Safe for
// concurrent use.
type JSONLZstdWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewJSONLZstdWriter creates path; it fails if path exists.
func NewJSONLZstdWriter(path string) (*JSONLZstdWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &JSONLZstdWriter{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return errors.New("report writer closed")
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.w, w.enc, w.f = nil, nil, nil
	return err
}

// Report writes the per-file run report.
type Report struct {
	runID string
	w     *JSONLZstdWriter
}

func NewReport(path, runID string) (*Report, error) {
	w, err := NewJSONLZstdWriter(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	return &Report{runID: runID, w: w}, nil
}

func (r *Report) WriteFile(e FileEntry) error {
	e.RunID = r.runID
	if e.FinishedAt == "" {
		e.FinishedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return r.w.Write(e)
}

func (r *Report) WriteSummary(e SummaryEntry) error {
	e.RunID = r.runID
	e.Summary = true
	if e.Finished == "" {
		e.Finished = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return r.w.Write(e)
}

// FileDone implements pipeline.Observer. The report is advisory, so write
// errors are dropped.
func (r *Report) FileDone(res pipeline.FileResult) {
	e := FileEntry{
		File:      filepath.Base(res.Path),
		Bytes:     res.Bytes,
		Chunks:    res.Chunks,
		Signs:     len(res.Signs),
		Code:      res.Code(),
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if x, z, ok := region.ParseName(res.Path); ok {
		e.RegionX, e.RegionZ = &x, &z
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	_ = r.WriteFile(e)
}

func (r *Report) Finish(sum pipeline.Summary) error {
	return r.WriteSummary(SummaryEntry{
		Files:   sum.Files,
		OK:      sum.OK,
		Failed:  sum.Failed,
		Skipped: sum.Skipped,
		Chunks:  sum.Chunks,
		Signs:   sum.Signs,
		Bytes:   sum.Bytes,
		Elapsed: sum.Elapsed.String(),
	})
}

func (r *Report) Close() error { return r.w.Close() }

// ReadEntries decodes every line of a report as a generic JSON object.
func ReadEntries(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	var out []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, m)
	}
	return out, sc.Err()
}
