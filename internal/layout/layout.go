// Package layout implements component E, the folder layout driver: given
// an item kind and a folder, decide the output path under one of four
// layout modes, open/close the backing file(s), and suppress empty files.
// Grounded on readpst.c's create_enter_dir/close_enter_dir (L2357-2497),
// mk_kmail_dir/close_kmail_dir (L766-807), mk_recurse_dir/close_recurse_dir
// (L856-884) and reduced_item_type's bucket collapse (L834).
//
// The original forks a worker per subtree and chdirs into each folder's
// directory as it descends (see internal/supervisor for the goroutine-pool
// replacement of the fork). This package instead always takes an explicit
// root and folder name and builds full paths, since go-pst's WalkFolders
// callback (the only traversal surface the teacher's code exercises) hands
// back a folder's own name but not its ancestor chain — so nested modes
// place every folder's directory directly under Config.Root rather than
// mirroring the PST's full folder depth. Reconstructing that depth would
// mean re-deriving the folder tree ourselves, which spec.md explicitly
// treats as the binary-format parser's job, not this driver's.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mxguardian/pst-extract/internal/domain"
	"github.com/mxguardian/pst-extract/internal/sanitize"
)

// Mode selects one of the four top-level layout schemes.
type Mode int

const (
	ModeNormal Mode = iota
	ModeKMail
	ModeRecurse
	ModeSeparate
)

// SeparateSubMode refines ModeSeparate's per-item filename scheme.
type SeparateSubMode int

const (
	SeparateNumeric   SeparateSubMode = iota // -S: 0, 1, 2, ... no extension
	SeparateMH                               // -M: MH numbering (1-based), extensions off
	SeparateMHExt                            // -e: MH numbering, extensions on
	SeparateMHExtMsg                         // -m: MH numbering, extensions on, plus a parallel .msg (not implemented, see DESIGN.md)
)

// Config is the layout driver's immutable configuration, assembled once by
// internal/cliapp from the mutually exclusive layout flags.
type Config struct {
	Root               string
	Mode               Mode
	SeparateSubMode    SeparateSubMode
	RecurseThunderbird bool
	Overwrite          bool
}

// bucketExt names the four output buckets item kinds collapse into, and
// the extension normal/kmail/recurse modes give their backing file.
var bucketExt = map[string]string{
	"mbox":     "mbox",
	"contacts": "contacts",
	"calendar": "calendar",
	"journal":  "journal",
}

// separateExt is the per-item extension ModeSeparate uses when its
// sub-mode has extensions enabled.
var separateExt = map[string]string{
	"mbox":     ".eml",
	"contacts": ".vcf",
	"calendar": ".ics",
	"journal":  ".ics",
}

// Bucket collapses an item kind into one of the four output buckets:
// {appointment, contact, journal} are distinct; everything else (mail,
// sticky note, task, other, report) collapses into "mbox".
func Bucket(kind domain.Kind) string {
	switch kind {
	case domain.KindContact:
		return "contacts"
	case domain.KindAppointment:
		return "calendar"
	case domain.KindJournal:
		return "journal"
	default:
		return "mbox"
	}
}

// Ledger is the open, per-folder output state: file ledger for
// normal/kmail/recurse modes, or a numbering cursor per bucket for
// ModeSeparate.
type Ledger struct {
	cfg    Config
	name   string
	dir    string
	handle map[string]*os.File
	path   map[string]string

	counters map[string]int

	ItemCount   int
	StoredCount int
	SkipCount   int
}

// Mode reports the layout mode the Ledger was opened with, so a caller
// can decide between Write and WriteItem without keeping its own copy of
// the Config around.
func (l *Ledger) Mode() Mode {
	return l.cfg.Mode
}

// SeparateSubMode reports the ModeSeparate sub-mode the Ledger was opened
// with, so a caller can tell SeparateNumeric (-S, MH off — the only mode
// that writes attachments as sibling files) apart from the other three.
func (l *Ledger) SeparateSubMode() SeparateSubMode {
	return l.cfg.SeparateSubMode
}

// EnterFolder creates and opens the output sink(s) for folder name under
// cfg, per the active layout mode.
func EnterFolder(cfg Config, name string) (*Ledger, error) {
	sanitized := sanitize.Sanitize(name)
	l := &Ledger{
		cfg:      cfg,
		name:     name,
		handle:   map[string]*os.File{},
		path:     map[string]string{},
		counters: map[string]int{},
	}

	switch cfg.Mode {
	case ModeKMail:
		dir := filepath.Join(cfg.Root, "."+sanitized+".directory")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("layout: mkdir %s: %w", dir, err)
		}
		removeKMailIndex(dir)
		l.dir = dir
		if err := l.openFlat(sanitized); err != nil {
			return nil, err
		}
	case ModeRecurse:
		dir := filepath.Join(cfg.Root, sanitized)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("layout: mkdir %s: %w", dir, err)
		}
		l.dir = dir
		if cfg.RecurseThunderbird {
			writeTypeFile(dir)
		}
		if err := l.openFlat(""); err != nil {
			return nil, err
		}
	case ModeSeparate:
		dir := filepath.Join(cfg.Root, sanitized)
		if cfg.Overwrite {
			cleanRegularFiles(dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("layout: mkdir %s: %w", dir, err)
		}
		l.dir = dir
	default: // ModeNormal
		l.dir = cfg.Root
		if err := l.openFlat(sanitized); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// openFlat pre-opens a file for every bucket, named "<prefix>.<ext>" when
// prefix is non-empty (normal/kmail) or just "<ext>" (recurse), matching
// create_enter_dir's eager per-type file creation. Buckets left unwritten
// are removed as empty files on Close.
func (l *Ledger) openFlat(prefix string) error {
	for bucket, ext := range bucketExt {
		base := ext
		if prefix != "" {
			base = prefix + "." + ext
		}
		full := filepath.Join(l.dir, base)
		path, err := sanitize.UniqueOutputPath(full, l.cfg.Overwrite)
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("layout: create %s: %w", path, err)
		}
		l.handle[bucket] = f
		l.path[bucket] = path
	}
	return nil
}

// Write appends data to the open bucket file for kind. Valid only in
// ModeNormal, ModeKMail, and ModeRecurse; use WriteItem for ModeSeparate.
func (l *Ledger) Write(kind domain.Kind, data []byte) error {
	f, ok := l.handle[Bucket(kind)]
	if !ok {
		return fmt.Errorf("layout: no open handle for bucket %s (wrong mode?)", Bucket(kind))
	}
	_, err := f.Write(data)
	return err
}

// ReserveItemPath claims the next numbered path for kind without writing to
// it, so a caller can name sibling attachment files off it before the
// item's own body is ready. WriteItem calls this internally; callers that
// need to write attachment sibling files (ModeSeparate/SeparateNumeric, see
// internal/walker) must reserve the path first and write the item's own
// data with WriteAt.
func (l *Ledger) ReserveItemPath(kind domain.Kind) (string, error) {
	bucket := Bucket(kind)
	n := l.counters[bucket]
	l.counters[bucket] = n + 1
	if l.cfg.SeparateSubMode != SeparateNumeric {
		n++ // MH-style numbering is 1-based
	}

	name := strconv.Itoa(n)
	if l.cfg.SeparateSubMode == SeparateMHExt || l.cfg.SeparateSubMode == SeparateMHExtMsg {
		name += separateExt[bucket]
	}
	return sanitize.UniqueOutputPath(filepath.Join(l.dir, name), l.cfg.Overwrite)
}

// WriteAt writes data to path, previously returned by ReserveItemPath.
func (l *Ledger) WriteAt(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("layout: write %s: %w", path, err)
	}
	return nil
}

// WriteItem writes data to a freshly numbered file for kind and returns its
// path. Valid only in ModeSeparate.
func (l *Ledger) WriteItem(kind domain.Kind, data []byte) (string, error) {
	path, err := l.ReserveItemPath(kind)
	if err != nil {
		return "", err
	}
	if err := l.WriteAt(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSiblingAttachment writes data to a uniquely named file beside
// basePath (the item's own reserved path), matching
// write_separate_attachment's dispatch for MODE_SEPARATE with MH off:
// attachments are saved next to the message file instead of being inlined.
func (l *Ledger) WriteSiblingAttachment(basePath, name string, attachNum int, data []byte) (string, error) {
	path, err := sanitize.UniqueSiblingPath(basePath, name, attachNum)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("layout: write attachment %s: %w", path, err)
	}
	return path, nil
}

// Close finalizes the folder: closes any open handles, removes any bucket
// file left at zero bytes, and writes the Thunderbird .size companion file
// for ModeRecurse when requested.
func (l *Ledger) Close() error {
	for bucket, f := range l.handle {
		if err := f.Close(); err != nil {
			return err
		}
		path := l.path[bucket]
		if st, err := os.Stat(path); err == nil && st.Size() == 0 {
			os.Remove(path)
		}
	}

	if l.cfg.Mode == ModeRecurse && l.cfg.RecurseThunderbird {
		sizePath := filepath.Join(l.dir, ".size")
		content := fmt.Sprintf("%d %d\n", l.ItemCount, l.StoredCount)
		_ = os.WriteFile(sizePath, []byte(content), 0o644)
	}
	return nil
}

// Summary renders the one-line per-folder progress message readpst.c
// prints from close_enter_dir.
func (l *Ledger) Summary() string {
	return fmt.Sprintf("%q - %d items done, %d items skipped.", l.name, l.ItemCount, l.SkipCount)
}

func removeKMailIndex(dir string) {
	os.Remove(filepath.Join(dir, ".kmailindex"))
}

func writeTypeFile(dir string) {
	_ = os.WriteFile(filepath.Join(dir, ".type"), []byte("1\n"), 0o644)
}

// cleanRegularFiles removes any pre-existing regular files directly inside
// dir, matching ModeSeparate's overwrite-on pre-clean step. Sub-directories
// are left untouched.
func cleanRegularFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}
