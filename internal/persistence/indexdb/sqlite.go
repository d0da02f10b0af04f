package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcraft.ai/signdump/internal/pipeline"
	"voxelcraft.ai/signdump/internal/region"
)

// SQLiteIndex stores extracted signs and per-file outcomes. All writes go
// through one goroutine that batches them into transactions.
type SQLiteIndex struct {
	db    *sql.DB
	runID string

	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	errMu sync.Mutex
	err   error

	fileRows atomic.Uint64
	signRows atomic.Uint64
}

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqFile
	reqRunEnd
)

type req struct {
	kind reqKind

	run  runRow
	file pipeline.FileResult
	sum  pipeline.Summary
}

type runRow struct {
	InputDir   string
	OutputPath string
	StartedAt  string
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	FileRows      uint64
	SignRows      uint64
}

func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			input_dir TEXT NOT NULL,
			output_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			files INTEGER,
			ok INTEGER,
			failed INTEGER,
			skipped INTEGER,
			chunks INTEGER,
			signs INTEGER,
			bytes INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id TEXT NOT NULL,
			file TEXT NOT NULL,
			region_x INTEGER,
			region_z INTEGER,
			bytes INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			signs INTEGER NOT NULL,
			code TEXT,
			error TEXT,
			elapsed_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, file)
		);`,
		`CREATE TABLE IF NOT EXISTS signs (
			run_id TEXT NOT NULL,
			file TEXT NOT NULL,
			slot INTEGER NOT NULL CHECK (slot >= 0),
			seq INTEGER NOT NULL,
			chunk_x INTEGER NOT NULL,
			chunk_z INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			text1 TEXT NOT NULL,
			text2 TEXT NOT NULL,
			text3 TEXT NOT NULL,
			text4 TEXT NOT NULL,
			PRIMARY KEY (run_id, file, slot, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signs_pos ON signs(x, z, y);`,
		`CREATE INDEX IF NOT EXISTS idx_files_code ON files(run_id, code);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) send(r req) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.ch <- r
}

func (s *SQLiteIndex) BeginRun(inputDir, outputPath string) {
	s.send(req{kind: reqRunStart, run: runRow{
		InputDir:   inputDir,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

// FileDone implements pipeline.Observer.
func (s *SQLiteIndex) FileDone(res pipeline.FileResult) {
	s.send(req{kind: reqFile, file: res})
}

func (s *SQLiteIndex) FinishRun(sum pipeline.Summary) {
	s.send(req{kind: reqRunEnd, sum: sum})
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		FileRows:      s.fileRows.Load(),
		SignRows:      s.signRows.Load(),
	}
}

// Close drains pending writes and returns the first write error.
func (s *SQLiteIndex) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
		if err := s.db.Close(); err != nil {
			s.setErr(err)
		}
	})
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *SQLiteIndex) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	begin := func() error {
		if tx != nil {
			return nil
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
		return nil
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.setErr(fmt.Errorf("index commit: %w", err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if err := begin(); err != nil {
			s.setErr(fmt.Errorf("index begin: %w", err))
			continue
		}
		n, err := s.applyIsolated(tx, r)
		if err != nil {
			s.setErr(err)
			continue
		}
		opCount += n
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || r.kind == reqRunEnd {
			commit()
		}
	}
	commit()
}

// applyIsolated runs one request under a savepoint, so a failing request
// leaves the rest of the batch intact.
func (s *SQLiteIndex) applyIsolated(tx *sql.Tx, r req) (int, error) {
	if _, err := tx.Exec(`SAVEPOINT req`); err != nil {
		return 0, fmt.Errorf("index savepoint: %w", err)
	}
	n, err := s.apply(tx, r)
	if err != nil {
		if _, rerr := tx.Exec(`ROLLBACK TO req`); rerr != nil {
			return 0, fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
	}
	if _, rerr := tx.Exec(`RELEASE req`); rerr != nil && err == nil {
		return 0, fmt.Errorf("index release: %w", rerr)
	}
	return n, err
}

func (s *SQLiteIndex) apply(tx *sql.Tx, r req) (int, error) {
	switch r.kind {
	case reqRunStart:
		_, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,input_dir,output_path,started_at) VALUES(?,?,?,?)`,
			s.runID, r.run.InputDir, r.run.OutputPath, r.run.StartedAt)
		if err != nil {
			return 0, fmt.Errorf("index run: %w", err)
		}
		return 1, nil

	case reqFile:
		return s.applyFile(tx, r.file)

	case reqRunEnd:
		sum := r.sum
		_, err := tx.Exec(`UPDATE runs SET finished_at=?,files=?,ok=?,failed=?,skipped=?,chunks=?,signs=?,bytes=? WHERE run_id=?`,
			time.Now().UTC().Format(time.RFC3339Nano),
			sum.Files, sum.OK, sum.Failed, sum.Skipped, sum.Chunks, sum.Signs, sum.Bytes,
			s.runID)
		if err != nil {
			return 0, fmt.Errorf("index run end: %w", err)
		}
		return 1, nil
	}
	return 0, nil
}

func (s *SQLiteIndex) applyFile(tx *sql.Tx, res pipeline.FileResult) (int, error) {
	name := filepath.Base(res.Path)
	var rx, rz sql.NullInt64
	if x, z, ok := region.ParseName(name); ok {
		rx = sql.NullInt64{Int64: int64(x), Valid: true}
		rz = sql.NullInt64{Int64: int64(z), Valid: true}
	}
	var code, msg sql.NullString
	if res.Err != nil {
		code = sql.NullString{String: res.Code(), Valid: true}
		msg = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO files(run_id,file,region_x,region_z,bytes,chunks,signs,code,error,elapsed_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		s.runID, name, rx, rz, res.Bytes, res.Chunks, len(res.Signs), code, msg, res.Elapsed.Milliseconds()); err != nil {
		return 0, fmt.Errorf("index file %s: %w", name, err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO signs(run_id,file,slot,seq,chunk_x,chunk_z,x,y,z,text1,text2,text3,text4) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("index prepare: %w", err)
	}
	defer stmt.Close()

	seq, lastSlot := 0, -1
	for _, sg := range res.Signs {
		if sg.Source.Slot != lastSlot {
			lastSlot, seq = sg.Source.Slot, 0
		}
		if _, err := stmt.Exec(s.runID, name, sg.Source.Slot, seq, sg.Source.ChunkX, sg.Source.ChunkZ,
			sg.X, sg.Y, sg.Z, sg.Text[0], sg.Text[1], sg.Text[2], sg.Text[3]); err != nil {
			return 0, fmt.Errorf("index sign %s slot %d: %w", name, sg.Source.Slot, err)
		}
		seq++
	}
	s.fileRows.Add(1)
	s.signRows.Add(uint64(len(res.Signs)))
	return 1 + len(res.Signs), nil
}
