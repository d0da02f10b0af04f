package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"voxelcraft.ai/signdump/internal/faults"
	"voxelcraft.ai/signdump/internal/pipeline"
	"voxelcraft.ai/signdump/internal/signs"
)

func sign(slot, cx, cz int, x, y, z int32, line string) pipeline.Sign {
	return pipeline.Sign{
		Record: signs.Record{X: x, Y: y, Z: z, Text: [4]string{line, "", "", ""}},
		Source: signs.Source{File: "r.1.-2.mca", Slot: slot, ChunkX: cx, ChunkZ: cz},
	}
}

func TestSQLiteIndex_WritesRunFilesAndSigns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath, "run-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.BeginRun("/in", "/out.txt")
	idx.FileDone(pipeline.FileResult{
		Path:    "/in/r.1.-2.mca",
		Bytes:   12288,
		Chunks:  2,
		Signs:   []pipeline.Sign{sign(0, 0, 0, 1, 64, 2, "a"), sign(0, 0, 0, 3, 64, 4, "b"), sign(33, 1, 1, 5, 70, 6, "c")},
		Elapsed: 3 * time.Millisecond,
	})
	idx.FileDone(pipeline.FileResult{
		Path: "/in/bad.mca",
		Err:  faults.At(faults.New(faults.ErrCompression, "unsupported compression kind 9"), "bad.mca", 4),
	})
	idx.FinishRun(pipeline.Summary{Files: 2, OK: 1, Failed: 1, Chunks: 2, Signs: 3, Bytes: 12288})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st := idx.Stats(); st.FileRows != 2 || st.SignRows != 3 {
		t.Fatalf("stats=%+v", st)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM signs WHERE run_id='run-1'`).Scan(&n); err != nil {
		t.Fatalf("count signs: %v", err)
	}
	if n != 3 {
		t.Fatalf("signs=%d want=3", n)
	}

	var text string
	if err := db.QueryRow(`SELECT text1 FROM signs WHERE x=5 AND y=70 AND z=6`).Scan(&text); err != nil {
		t.Fatalf("query sign: %v", err)
	}
	if text != "c" {
		t.Fatalf("text1=%q want=c", text)
	}

	var rx, rz sql.NullInt64
	if err := db.QueryRow(`SELECT region_x, region_z FROM files WHERE file='r.1.-2.mca'`).Scan(&rx, &rz); err != nil {
		t.Fatalf("query file: %v", err)
	}
	if !rx.Valid || rx.Int64 != 1 || !rz.Valid || rz.Int64 != -2 {
		t.Fatalf("region=(%v,%v)", rx, rz)
	}

	var code string
	if err := db.QueryRow(`SELECT code FROM files WHERE file='bad.mca'`).Scan(&code); err != nil {
		t.Fatalf("query failed file: %v", err)
	}
	if code != faults.ErrCompression {
		t.Fatalf("code=%q want=%q", code, faults.ErrCompression)
	}

	var failed int
	var finished sql.NullString
	if err := db.QueryRow(`SELECT failed, finished_at FROM runs WHERE run_id='run-1'`).Scan(&failed, &finished); err != nil {
		t.Fatalf("query run: %v", err)
	}
	if failed != 1 || !finished.Valid {
		t.Fatalf("failed=%d finished=%v", failed, finished)
	}
}

func TestSQLiteIndex_CloseIsIdempotent(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "index.sqlite"), "run-2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Writes after close are dropped rather than panicking.
	idx.FileDone(pipeline.FileResult{Path: "late.mca"})
}

func TestOpenSQLite_RejectsEmptyArgs(t *testing.T) {
	if _, err := OpenSQLite("", "run"); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"), ""); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}

func TestSQLiteIndex_FailedRequestKeepsBatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath, "run-3")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.BeginRun("/in", "/out.txt")
	idx.FileDone(pipeline.FileResult{Path: "/in/r.0.0.mca", Chunks: 1, Signs: []pipeline.Sign{sign(2, 2, 0, 1, 2, 3, "ok")}})
	// A negative slot violates the signs table check after the file row
	// was written; both must be undone, and nothing else.
	idx.FileDone(pipeline.FileResult{Path: "/in/r.0.1.mca", Chunks: 1, Signs: []pipeline.Sign{sign(-1, 0, 0, 4, 5, 6, "bad")}})
	idx.FileDone(pipeline.FileResult{Path: "/in/r.0.2.mca"})
	idx.FinishRun(pipeline.Summary{Files: 3, OK: 3})
	if err := idx.Close(); err == nil {
		t.Fatalf("expected the failed insert to be reported")
	}
	if st := idx.Stats(); st.FileRows != 2 || st.SignRows != 1 {
		t.Fatalf("stats=%+v", st)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var files, signsN, runs int
	if err := db.QueryRow(`SELECT COUNT(*) FROM files WHERE run_id='run-3'`).Scan(&files); err != nil {
		t.Fatalf("count files: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM signs WHERE run_id='run-3'`).Scan(&signsN); err != nil {
		t.Fatalf("count signs: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id='run-3' AND finished_at IS NOT NULL`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if files != 2 || signsN != 1 || runs != 1 {
		t.Fatalf("files=%d signs=%d runs=%d want 2/1/1", files, signsN, runs)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM files WHERE file='r.0.1.mca'`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("failed file row kept: n=%d err=%v", n, err)
	}
}
