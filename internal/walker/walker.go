// Package walker implements component F: the recursive folder walk that
// drives the whole extraction. Grounded on readpst.c's process (L239-410):
// enter a folder, recurse into non-empty children (skipping Deleted Items
// unless -D), route each leaf item through the output-type mask to the
// matching serializer, and tally item/skip counts per folder.
package walker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	govcard "github.com/emersion/go-vcard"

	"github.com/mxguardian/pst-extract/internal/config"
	"github.com/mxguardian/pst-extract/internal/domain"
	"github.com/mxguardian/pst-extract/internal/ical"
	"github.com/mxguardian/pst-extract/internal/layout"
	"github.com/mxguardian/pst-extract/internal/mailmsg"
	"github.com/mxguardian/pst-extract/internal/pstsrc"
	"github.com/mxguardian/pst-extract/internal/supervisor"
	"github.com/mxguardian/pst-extract/internal/vcard"
)

// Reporter receives the per-folder progress lines readpst.c prints from
// close_enter_dir, and per-item "." progress dots. Both are optional; a
// nil Reporter means silence (the -q equivalent at the walker layer —
// internal/logging decides what actually reaches stdout).
type Reporter interface {
	FolderDone(name string, itemCount, skipCount int)
	ItemProcessed()
}

// Manifest is the subset of *resume.Manifest the walker needs, as an
// interface so tests can fake it without touching the filesystem.
type Manifest interface {
	IsMaterialized(blockKey string) bool
	MarkMaterialized(blockKey string)
	IsFolderComplete(folderName string) bool
	MarkFolderComplete(folderName string)
}

// Walker drives one extraction run: it owns the config, the layout
// driver's factory, the bounded-concurrency pool, and (optionally) a
// resume manifest.
//
// go-pst's WalkFolders callback (the only traversal surface internal/
// pstsrc exercises) visits one folder fully — its onFolder call followed
// by every onItem call for its messages — before moving to the next, all
// on the same goroutine. So the current folder's layout.Ledger is opened
// on entry and kept open across every onItem call for that folder,
// mirroring create_enter_dir/close_enter_dir's scope in readpst.c's
// process(); there is no true fork-per-subtree opportunity left to hand
// to internal/supervisor once the underlying parser only offers a
// forward, single-threaded iterator (see the "Known simplification" note
// under internal/walker in DESIGN.md).
type Walker struct {
	cfg      config.Config
	pool     *supervisor.Pool
	manifest Manifest
	report   Reporter

	mu         sync.Mutex
	totalItems int
	totalSkip  int

	current       *layout.Ledger
	currentFolder string
}

// New creates a Walker. manifest and report may be nil.
func New(ctx context.Context, cfg config.Config, manifest Manifest, report Reporter) *Walker {
	return &Walker{
		cfg:      cfg,
		pool:     supervisor.New(ctx, cfg.Concurrency),
		manifest: manifest,
		report:   report,
	}
}

// Run walks every folder and item in archive, and returns the first
// error produced.
func (w *Walker) Run(archive *pstsrc.Archive) error {
	err := archive.Walk(w.onFolder, w.onItem)
	if closeErr := w.closeCurrent(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return w.pool.Wait()
}

// onFolder implements pstsrc.FolderFunc: closes the previous folder's
// Ledger (if any), reports its summary, then applies the Deleted-Items
// skip rule and the resume manifest's already-complete skip (neither adds
// to the item or skip counts) before opening the new folder's Ledger.
func (w *Walker) onFolder(f domain.FolderItem) (bool, error) {
	if err := w.closeCurrent(); err != nil {
		return false, err
	}

	if f.IsSpecial && !w.cfg.IncludeDeleted {
		return true, nil
	}
	if w.manifest != nil && w.manifest.IsFolderComplete(f.Name) {
		return true, nil
	}

	l, err := layout.EnterFolder(w.cfg.Layout, f.Name)
	if err != nil {
		return false, fmt.Errorf("walker: enter folder %q: %w", f.Name, err)
	}
	w.current = l
	w.currentFolder = f.Name
	return false, nil
}

// closeCurrent finalizes and reports on whichever folder is open, if any.
func (w *Walker) closeCurrent() error {
	if w.current == nil {
		return nil
	}
	l := w.current
	name := w.currentFolder
	w.current = nil
	w.currentFolder = ""

	if err := l.Close(); err != nil {
		return fmt.Errorf("walker: close folder %q: %w", name, err)
	}
	if w.manifest != nil {
		w.manifest.MarkFolderComplete(name)
	}
	if w.report != nil {
		w.report.FolderDone(name, l.ItemCount, l.SkipCount)
	}
	return nil
}

// onItem implements pstsrc.ItemFunc, routing item through the output-type
// mask to the current folder's layout ledger. Materialization happens
// inline on the walking goroutine — matching the non-separate branch of
// readpst.c's process(), which never forks per message either; see
// Walker's doc comment for why there is no further subtree to hand to
// internal/supervisor here.
func (w *Walker) onItem(folderPath []string, item domain.Item) error {
	l := w.current
	if l == nil {
		// onFolder skipped this folder; nothing to do.
		return nil
	}
	blockKey := strconv.FormatUint(item.BlockID, 10)

	if w.manifest != nil && w.manifest.IsMaterialized(blockKey) {
		l.SkipCount++
		w.countSkip()
		return nil
	}

	if !w.outputAllowed(item.Kind) {
		l.SkipCount++
		w.countSkip()
		return nil
	}

	if err := w.materialize(l, item); err != nil {
		return fmt.Errorf("walker: folder %q item %d: %w", w.currentFolder, item.BlockID, err)
	}

	l.ItemCount++
	l.StoredCount++
	if w.manifest != nil {
		w.manifest.MarkMaterialized(blockKey)
	}
	w.countItem()
	if w.report != nil {
		w.report.ItemProcessed()
	}
	return nil
}

func (w *Walker) outputAllowed(kind domain.Kind) bool {
	switch kind {
	case domain.KindMail:
		return w.cfg.OutputTypes.Has(config.OutputEmail)
	case domain.KindAppointment:
		return w.cfg.OutputTypes.Has(config.OutputAppointment)
	case domain.KindJournal:
		return w.cfg.OutputTypes.Has(config.OutputJournal)
	case domain.KindContact:
		return w.cfg.OutputTypes.Has(config.OutputContact)
	default:
		return false
	}
}

// materialize renders item and writes it through l, in whichever shape
// the current layout mode (flat bucket file vs one numbered file per
// item) requires. Mail items in ModeSeparate/SeparateNumeric (-S, MH off)
// additionally write their non-embedded attachments as sibling files next
// to the message file instead of inlining them, matching
// write_separate_attachment's dispatch.
func (w *Walker) materialize(l *layout.Ledger, item domain.Item) error {
	if item.Kind == domain.KindMail && l.Mode() == layout.ModeSeparate && l.SeparateSubMode() == layout.SeparateNumeric {
		return w.materializeMailSeparate(l, item)
	}

	var data []byte
	var err error

	switch item.Kind {
	case domain.KindMail:
		data, err = mailmsg.Render(item.Mail, w.mailOptions(l), item.BlockID)
	case domain.KindContact:
		data, err = renderContact(item.Contact, w.cfg)
	case domain.KindAppointment:
		data = []byte(ical.RenderEvent(item.Appointment, item.BlockID) + "\n")
	case domain.KindJournal:
		data = []byte(ical.RenderJournal(item.Journal) + "\n")
	default:
		return fmt.Errorf("unhandled item kind %v", item.Kind)
	}
	if err != nil {
		return err
	}

	if l.Mode() == layout.ModeSeparate {
		_, err := l.WriteItem(item.Kind, data)
		return err
	}
	return l.Write(item.Kind, data)
}

// mailOptions builds the mailmsg.Options shared by every mail-rendering
// path, threading the -a extension filter through to collectParts.
func (w *Walker) mailOptions(l *layout.Ledger) mailmsg.Options {
	return mailmsg.Options{
		Charset:        w.cfg.DefaultCharset,
		PreferUTF8:     w.cfg.PreferUTF8,
		SaveRTF:        w.cfg.SaveRTFBody,
		ForMbox:        l.Mode() != layout.ModeSeparate,
		KeepAttachment: w.cfg.KeepAttachment,
	}
}

// materializeMailSeparate reserves the message's own numbered path first so
// attachment sibling files can be named off it, renders the message body
// with its regular attachments excluded, writes the body, then writes each
// surviving attachment as its own sibling file.
func (w *Walker) materializeMailSeparate(l *layout.Ledger, item domain.Item) error {
	path, err := l.ReserveItemPath(item.Kind)
	if err != nil {
		return err
	}

	opts := w.mailOptions(l)
	opts.SeparateAttachments = true
	data, err := mailmsg.Render(item.Mail, opts, item.BlockID)
	if err != nil {
		return err
	}
	if err := l.WriteAt(path, data); err != nil {
		return err
	}

	attachNum := 0
	for _, att := range item.Mail.Attachments {
		if att.Embedded != nil {
			continue // always inlined, never written separately
		}
		if !w.cfg.KeepAttachment(att.Filename) {
			continue
		}
		attachNum++
		if _, err := l.WriteSiblingAttachment(path, att.Filename, attachNum, att.Data); err != nil {
			return err
		}
	}
	return nil
}

// renderContact implements the -c v/-c l split: a full vCard record, or a
// single "Display Name <email>" line, per readpst.c's CMODE_VCARD vs
// CMODE_LIST branch in process() (L298-306).
func renderContact(c *domain.ContactItem, cfg config.Config) ([]byte, error) {
	if cfg.Contact == config.ContactList {
		email := c.Emails[0]
		return []byte(fmt.Sprintf("%s <%s>\n", c.DisplayName, email)), nil
	}
	card := vcard.Render(c)
	var buf strings.Builder
	if err := govcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("encode vcard: %w", err)
	}
	return []byte(buf.String()), nil
}

func (w *Walker) countItem() {
	w.mu.Lock()
	w.totalItems++
	w.mu.Unlock()
}

func (w *Walker) countSkip() {
	w.mu.Lock()
	w.totalSkip++
	w.mu.Unlock()
}

// Totals returns the running item/skip counts across the whole run.
func (w *Walker) Totals() (items, skipped int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalItems, w.totalSkip
}
