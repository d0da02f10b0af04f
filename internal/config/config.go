package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelcraft.ai/signdump/internal/region"
	"voxelcraft.ai/signdump/internal/signs"
)

const (
	OnErrorContinue = "continue"
	OnErrorAbort    = "abort"

	// Mapped files fault with SIGBUS if another process truncates them
	// mid-run, so mapping is opt-in.
	ReadMmap = "mmap"
	ReadFull = "read"

	MissingError = "error"
	MissingEmpty = "empty"
)

type Config struct {
	Workers      int    `yaml:"workers"`
	OnError      string `yaml:"on_error"`
	OutputFormat string `yaml:"output_format"`
	ReadMode     string `yaml:"read_mode"`

	IndexPath  string `yaml:"index_path,omitempty"`
	ReportPath string `yaml:"report_path,omitempty"`

	Format FormatSpec `yaml:"format"`
}

// FormatSpec holds the save format constants. An explicit empty level_key
// reads tile entities from the chunk root.
type FormatSpec struct {
	SectorSize          int      `yaml:"sector_size"`
	SlotCount           int      `yaml:"slot_count"`
	LevelKey            string   `yaml:"level_key"`
	TileEntitiesKey     string   `yaml:"tile_entities_key"`
	IDKey               string   `yaml:"id_key"`
	SignIDSubstring     string   `yaml:"sign_id_substring"`
	TextKeys            []string `yaml:"text_keys"`
	CoordKeys           []string `yaml:"coord_keys"`
	MissingTileEntities string   `yaml:"missing_tile_entities"`
}

func Defaults() Config {
	s := signs.DefaultSchema()
	return Config{
		Workers:      0,
		OnError:      OnErrorContinue,
		OutputFormat: string(signs.FormatLegacy),
		ReadMode:     ReadFull,
		Format: FormatSpec{
			SectorSize:          region.SectorSize,
			SlotCount:           region.SlotCount,
			LevelKey:            s.LevelKey,
			TileEntitiesKey:     s.TileEntitiesKey,
			IDKey:               s.IDKey,
			SignIDSubstring:     s.SignSubstring,
			TextKeys:            s.TextKeys[:],
			CoordKeys:           s.CoordKeys[:],
			MissingTileEntities: MissingError,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	name := filepath.Base(path)
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	d := Defaults()
	c.OnError = strings.ToLower(strings.TrimSpace(c.OnError))
	if c.OnError == "" {
		c.OnError = d.OnError
	}
	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))
	if c.OutputFormat == "" {
		c.OutputFormat = d.OutputFormat
	}
	c.ReadMode = strings.ToLower(strings.TrimSpace(c.ReadMode))
	if c.ReadMode == "" {
		c.ReadMode = d.ReadMode
	}
	c.IndexPath = strings.TrimSpace(c.IndexPath)
	c.ReportPath = strings.TrimSpace(c.ReportPath)

	f := &c.Format
	if f.SectorSize == 0 {
		f.SectorSize = d.Format.SectorSize
	}
	if f.SlotCount == 0 {
		f.SlotCount = d.Format.SlotCount
	}
	if f.TileEntitiesKey == "" {
		f.TileEntitiesKey = d.Format.TileEntitiesKey
	}
	if f.IDKey == "" {
		f.IDKey = d.Format.IDKey
	}
	if f.SignIDSubstring == "" {
		f.SignIDSubstring = d.Format.SignIDSubstring
	}
	if len(f.TextKeys) == 0 {
		f.TextKeys = d.Format.TextKeys
	}
	if len(f.CoordKeys) == 0 {
		f.CoordKeys = d.Format.CoordKeys
	}
	f.MissingTileEntities = strings.ToLower(strings.TrimSpace(f.MissingTileEntities))
	if f.MissingTileEntities == "" {
		f.MissingTileEntities = d.Format.MissingTileEntities
	}
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	switch c.OnError {
	case OnErrorContinue, OnErrorAbort:
	default:
		return fmt.Errorf("on_error must be %q or %q, got %q", OnErrorContinue, OnErrorAbort, c.OnError)
	}
	if _, err := signs.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("output_format: %w", err)
	}
	switch c.ReadMode {
	case ReadMmap, ReadFull:
	default:
		return fmt.Errorf("read_mode must be %q or %q, got %q", ReadMmap, ReadFull, c.ReadMode)
	}

	f := c.Format
	if f.SectorSize <= 0 {
		return fmt.Errorf("format.sector_size must be > 0, got %d", f.SectorSize)
	}
	if f.SlotCount <= 0 {
		return fmt.Errorf("format.slot_count must be > 0, got %d", f.SlotCount)
	}
	if len(f.TextKeys) != 4 {
		return fmt.Errorf("format.text_keys needs 4 keys, got %d", len(f.TextKeys))
	}
	if len(f.CoordKeys) != 3 {
		return fmt.Errorf("format.coord_keys needs 3 keys, got %d", len(f.CoordKeys))
	}
	switch f.MissingTileEntities {
	case MissingError, MissingEmpty:
	default:
		return fmt.Errorf("format.missing_tile_entities must be %q or %q, got %q", MissingError, MissingEmpty, f.MissingTileEntities)
	}
	return nil
}

// EffectiveWorkers resolves 0 to the number of CPUs.
func (c Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

func (c Config) Layout() region.Layout {
	return region.Layout{SectorSize: c.Format.SectorSize, Slots: c.Format.SlotCount}
}

func (c Config) Schema() signs.Schema {
	f := c.Format
	s := signs.Schema{
		LevelKey:                 f.LevelKey,
		TileEntitiesKey:          f.TileEntitiesKey,
		IDKey:                    f.IDKey,
		SignSubstring:            f.SignIDSubstring,
		AllowMissingTileEntities: f.MissingTileEntities == MissingEmpty,
	}
	copy(s.TextKeys[:], f.TextKeys)
	copy(s.CoordKeys[:], f.CoordKeys)
	return s
}

func (c Config) Output() signs.Format {
	f, _ := signs.ParseFormat(c.OutputFormat)
	return f
}
