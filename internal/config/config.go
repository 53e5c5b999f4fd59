// Package config holds the extraction run's option bag as a single
// immutable value, assembled once by internal/cliapp from the command
// line and threaded through internal/walker, internal/layout and the
// serializers. Grounded on spec.md Design Notes §9 ("Global option bag
// becomes an immutable config.Config value... no package-level mutable
// globals, so goroutine workers never need to re-read globals after
// fork"), replacing readpst.c's file-scope globals (mode, mode_MH,
// mode_EX, output_type_mode, contact_mode, deleted_mode, charset,
// prefer_utf8, save_rtf_body, ...; L70-110).
package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mxguardian/pst-extract/internal/layout"
)

// OutputType is a bitmask selecting which item kinds are materialized,
// the Go analogue of readpst.c's OTMODE_* bits (L120-124).
type OutputType uint8

const (
	OutputEmail OutputType = 1 << iota
	OutputAppointment
	OutputJournal
	OutputContact

	OutputAll = OutputEmail | OutputAppointment | OutputJournal | OutputContact
)

// Has reports whether t is included in the mask.
func (m OutputType) Has(t OutputType) bool {
	return m&t != 0
}

// ContactMode selects how contacts are rendered: as vCard records, or a
// single "name <email>" line per contact, mirroring readpst.c's
// CMODE_VCARD / CMODE_LIST (L126-129).
type ContactMode int

const (
	ContactVCard ContactMode = iota
	ContactList
)

// Config is the complete, immutable set of options governing one
// extraction run.
type Config struct {
	// PSTPath is the archive to read.
	PSTPath string
	// Layout is the folder/file layout driver's own configuration
	// (Root, Mode, SeparateSubMode, RecurseThunderbird, Overwrite).
	Layout layout.Config

	// IncludeDeleted mirrors -D: walk the Deleted Items / Trash branch
	// instead of skipping it.
	IncludeDeleted bool
	// DefaultCharset is used for items with no declared charset (-C).
	DefaultCharset string
	// PreferUTF8 mirrors -8: prefer a UTF-8 body over transcoding to the
	// declared or default charset when the body is already UTF-8.
	PreferUTF8 bool
	// SaveRTFBody mirrors the absence of -b: attach the compressed RTF
	// body when true (the flag name is inverted from the CLI's -b,
	// "do not attach the RTF body", for a positive-sense field).
	SaveRTFBody bool
	// KeepAttachmentExts is the lower-cased extension allow-list from -a;
	// a nil/empty set means "keep every attachment" (no filter applied).
	// Extensionless or nameless attachments are always kept regardless.
	KeepAttachmentExts map[string]struct{}
	// OutputTypes is the -t output-type mask.
	OutputTypes OutputType
	// Contact selects vCard vs one-line contact rendering (-c).
	Contact ContactMode
	// Concurrency caps the number of folder subtrees processed at once
	// (-j). Zero means "use the default", resolved by New.
	Concurrency int64

	// Resume mirrors the teacher's --fresh-derived flags, generalized to
	// the filesystem-materialization resume manifest.
	Resume bool
	Fresh  bool
}

// New fills in Config defaults mirroring readpst.c's own defaults:
// output-type mask set to "all", RTF bodies saved, concurrency set from
// runtime.GOMAXPROCS(0) (the _SC_NPROCESSORS_ONLN analogue spec.md §6
// calls out).
func New(pstPath string) Config {
	return Config{
		PSTPath:        pstPath,
		DefaultCharset: "",
		SaveRTFBody:    true,
		OutputTypes:    OutputAll,
		Contact:        ContactVCard,
		Concurrency:    defaultConcurrency(),
	}
}

func defaultConcurrency() int64 {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return int64(4 * n)
}

// KeepAttachment reports whether an attachment named filename (possibly
// empty, possibly without an extension) survives the -a filter.
func (c Config) KeepAttachment(filename string) bool {
	if len(c.KeepAttachmentExts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return true
	}
	_, ok := c.KeepAttachmentExts[ext]
	return ok
}
