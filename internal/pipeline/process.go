package pipeline

import (
	"log"
	"path/filepath"
	"time"

	"voxelcraft.ai/signdump/internal/chunkcodec"
	"voxelcraft.ai/signdump/internal/faults"
	"voxelcraft.ai/signdump/internal/region"
	"voxelcraft.ai/signdump/internal/signs"
)

type Options struct {
	Layout   region.Layout
	Schema   signs.Schema
	Format   signs.Format
	Workers  int
	FailFast bool
	// Mmap maps region files instead of reading them into memory.
	Mmap bool

	Logger   *log.Logger
	Observer Observer
	Progress *Progress
}

func DefaultOptions() Options {
	return Options{
		Layout:  region.DefaultLayout(),
		Schema:  signs.DefaultSchema(),
		Format:  signs.FormatLegacy,
		Workers: 1,
	}
}

// Sign is one extracted record with its location in the input.
type Sign struct {
	signs.Record
	Source signs.Source
}

type FileResult struct {
	Path    string
	Bytes   int
	Chunks  int
	Signs   []Sign
	Err     error
	Elapsed time.Duration
}

func (r FileResult) Code() string { return faults.CodeOf(r.Err) }

// Observer is told about every finished file, successful or not.
type Observer interface {
	FileDone(FileResult)
}

// ProcessFile extracts the signs of one region file and queues their lines
// on sink, one batch per chunk. A fault stops the file; lines of earlier
// chunks have already been queued.
func ProcessFile(path string, sink *Sink, opts Options) FileResult {
	start := time.Now()
	res := FileResult{Path: path}
	name := filepath.Base(path)

	open := region.ReadFile
	if opts.Mmap {
		open = region.Map
	}
	f, err := open(path)
	if err != nil {
		res.Err = faults.At(faults.Wrap(faults.ErrIO, err), name, faults.NoSlot)
		res.Elapsed = time.Since(start)
		return res
	}
	defer f.Close()
	res.Bytes = f.Size()

	rd := region.NewReader(f.Bytes(), opts.Layout)
	for rd.Next() {
		c := rd.Chunk()
		res.Chunks++

		root, err := chunkcodec.Decode(c.Body, c.Kind)
		if err != nil {
			res.Err = faults.At(err, name, c.Slot)
			break
		}
		recs, err := signs.Extract(root, opts.Schema)
		if err != nil {
			res.Err = faults.At(err, name, c.Slot)
			break
		}
		if len(recs) == 0 {
			continue
		}

		cx, cz := c.Local()
		src := signs.Source{File: name, Slot: c.Slot, ChunkX: cx, ChunkZ: cz}
		var buf []byte
		for _, rec := range recs {
			if buf, err = signs.AppendLine(buf, rec, src, opts.Format); err != nil {
				break
			}
			res.Signs = append(res.Signs, Sign{Record: rec, Source: src})
		}
		if err == nil {
			err = sink.Write(buf, len(recs))
		}
		if err != nil {
			res.Err = faults.At(faults.Wrap(faults.ErrIO, err), name, c.Slot)
			break
		}
	}
	if res.Err == nil {
		if err := rd.Err(); err != nil {
			res.Err = faults.At(err, name, faults.NoSlot)
		}
	}
	res.Elapsed = time.Since(start)
	return res
}
