// Package cliapp assembles the command-line surface (flag parsing, option
// validation, Config construction, orchestration) for cmd/pstextract.
// Grounded on readpst.c's main (L411-683) for the flag table, mutual-
// exclusion rule, and exit-code scheme, and on the teacher's own
// cmd/pst-import-cli/main.go + internal/cli/run.go for the Go-idiomatic
// split between a thin main() and an internal orchestration package — here
// rebuilt against github.com/urfave/cli/v2 (no usage of it survives
// anywhere in the retrieval pack; this is the library's own documented
// App/Flags/Action shape) instead of the teacher's stdlib flag package,
// since the flag surface here is an order of magnitude larger and
// benefits from urfave/cli's built-in usage text, mutually-exclusive flag
// support, and typed accessors.
package cliapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mxguardian/pst-extract/internal/config"
	"github.com/mxguardian/pst-extract/internal/layout"
	"github.com/mxguardian/pst-extract/internal/logging"
	"github.com/mxguardian/pst-extract/internal/pstsrc"
	"github.com/mxguardian/pst-extract/internal/resume"
	"github.com/mxguardian/pst-extract/internal/walker"
)

// Exit codes, unchanged from readpst.c's main (L411-683).
const (
	ExitOK           = 0
	ExitArchiveOpen  = 1
	ExitIndexLoad    = 2
	ExitRegexCompile = 3
	ExitWorkerError  = 4
)

// exitError carries a process exit code alongside the error cliapp's
// caller (cmd/pstextract) reports.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode extracts the process exit code from an error returned by Run,
// defaulting to 1 for any error that didn't originate from a known stage.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// progressReporter implements walker.Reporter, printing the same
// per-folder and per-item progress readpst.c's process()/close_enter_dir
// print, suppressed by -q.
type progressReporter struct {
	quiet bool
	dots  int
}

func (p *progressReporter) FolderDone(name string, itemCount, skipCount int) {
	if p.quiet {
		return
	}
	if p.dots > 0 {
		fmt.Println()
		p.dots = 0
	}
	fmt.Printf("%q - %d items done, %d items skipped.\n", name, itemCount, skipCount)
}

func (p *progressReporter) ItemProcessed() {
	if p.quiet {
		return
	}
	p.dots++
	if p.dots%50 == 0 {
		fmt.Print(".")
	}
}

// NewApp builds the *cli.App for cmd/pstextract.
func NewApp(version string) *cli.App {
	var (
		outDir                                      string
		quiet                                       bool
		debugLevel                                  int
		debugFile                                   string
		defaultCharset                              string
		preferUTF8                                  bool
		includeDeleted                               bool
		overwrite                                    bool
		noRTF                                        bool
		attachExts                                   string
		contactMode                                  string
		outputTypes                                  string
		kmail, recurse, recurseTB, sepNum, sepMH, sepMHExt, sepMHExtMsg bool
		concurrency                                  int64
		resumeFlag, freshFlag                        bool
	)

	app := &cli.App{
		Name:      "pstextract",
		Usage:     "extract mail, contacts, appointments and journal entries from a PST archive",
		Version:   version,
		ArgsUsage: "<pst-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "o", Usage: "output root directory", Destination: &outDir},
			&cli.BoolFlag{Name: "q", Usage: "quiet; only errors to stdout", Destination: &quiet},
			&cli.IntFlag{Name: "L", Usage: "debug level: 1 debug, 2 info, 3 warn", Destination: &debugLevel},
			&cli.StringFlag{Name: "d", Usage: "debug log file", Destination: &debugFile},
			&cli.StringFlag{Name: "C", Usage: "default charset for items with no declared charset", Destination: &defaultCharset},
			&cli.BoolFlag{Name: "8", Usage: "prefer UTF-8 output when body is UTF-8", Destination: &preferUTF8},
			&cli.BoolFlag{Name: "D", Usage: "include the Deleted Items branch", Destination: &includeDeleted},
			&cli.BoolFlag{Name: "w", Usage: "overwrite existing output files", Destination: &overwrite},
			&cli.BoolFlag{Name: "b", Usage: "do not attach the RTF body", Destination: &noRTF},
			&cli.StringFlag{Name: "a", Usage: "keep only attachments with these extensions (comma separated)", Destination: &attachExts},
			&cli.StringFlag{Name: "c", Usage: "contact mode: v (vCard) or l (one-line list)", Value: "v", Destination: &contactMode},
			&cli.StringFlag{Name: "t", Usage: "output-type mask: any subset of e,a,j,c", Destination: &outputTypes},
			&cli.BoolFlag{Name: "k", Usage: "KMail layout", Destination: &kmail},
			&cli.BoolFlag{Name: "r", Usage: "recurse layout", Destination: &recurse},
			&cli.BoolFlag{Name: "u", Usage: "recurse layout + Thunderbird .type/.size files", Destination: &recurseTB},
			&cli.BoolFlag{Name: "S", Usage: "separate layout, numeric filenames", Destination: &sepNum},
			&cli.BoolFlag{Name: "M", Usage: "separate layout, MH numbering, no extensions", Destination: &sepMH},
			&cli.BoolFlag{Name: "e", Usage: "separate layout, MH numbering, extensions on", Destination: &sepMHExt},
			&cli.BoolFlag{Name: "m", Usage: "separate layout, MH numbering, extensions on, plus .msg", Destination: &sepMHExtMsg},
			&cli.Int64Flag{Name: "j", Usage: "concurrency cap (default 4x NumCPU)", Destination: &concurrency},
			&cli.BoolFlag{Name: "resume", Usage: "skip items/folders already materialized in a prior run", Destination: &resumeFlag},
			&cli.BoolFlag{Name: "fresh", Usage: "ignore and clear any resume manifest before starting", Destination: &freshFlag},
		},
		// ExitErrHandler is a no-op: cmd/pstextract maps the returned error
		// to a process exit code itself via ExitCode, so urfave/cli's own
		// os.Exit-on-error default must not run first.
		ExitErrHandler: func(c *cli.Context, err error) {},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return &exitError{code: ExitArchiveOpen, err: fmt.Errorf("exactly one <pst-file> argument is required")}
			}

			layoutCfg, err := resolveLayout(outDir, overwrite, kmail, recurse, recurseTB, sepNum, sepMH, sepMHExt, sepMHExtMsg)
			if err != nil {
				return &exitError{code: ExitArchiveOpen, err: err}
			}

			cfg := config.New(c.Args().Get(0))
			cfg.Layout = layoutCfg
			cfg.DefaultCharset = defaultCharset
			cfg.PreferUTF8 = preferUTF8
			cfg.IncludeDeleted = includeDeleted
			cfg.SaveRTFBody = !noRTF
			cfg.KeepAttachmentExts = parseExtensions(attachExts)
			cfg.OutputTypes = parseOutputTypes(outputTypes)
			cfg.Contact = parseContactMode(contactMode)
			cfg.Resume = resumeFlag
			cfg.Fresh = freshFlag
			if concurrency > 0 {
				cfg.Concurrency = concurrency
			}

			logger, closer, err := logging.New(logging.Options{Level: debugLevel, File: debugFile, Quiet: quiet})
			if err != nil {
				return &exitError{code: ExitArchiveOpen, err: err}
			}
			defer closer.Close()

			return Run(context.Background(), cfg, logger, quiet)
		},
	}
	return app
}

// Run opens the archive, assembles the resume manifest, drives the
// walker, and persists the manifest on the way out.
func Run(ctx context.Context, cfg config.Config, logger *logrus.Logger, quiet bool) error {
	archive, err := pstsrc.Open(cfg.PSTPath)
	if err != nil {
		return &exitError{code: ExitArchiveOpen, err: fmt.Errorf("open %s: %w", cfg.PSTPath, err)}
	}
	defer archive.Close()

	var manifest walker.Manifest
	if cfg.Resume || cfg.Fresh {
		m, err := resume.New(cfg.PSTPath, cfg.Layout.Root)
		if err != nil {
			return &exitError{code: ExitIndexLoad, err: err}
		}
		if cfg.Fresh {
			if err := m.Clear(); err != nil {
				return &exitError{code: ExitIndexLoad, err: err}
			}
		} else if err := m.Load(); err != nil {
			logger.Infof("resume: %v (starting fresh)", err)
		}
		manifest = m
		defer m.Save()
	}

	reporter := &progressReporter{quiet: quiet}
	w := walker.New(ctx, cfg, manifest, reporter)

	if err := w.Run(archive); err != nil {
		logger.Errorf("extraction failed: %v", err)
		return &exitError{code: ExitWorkerError, err: err}
	}

	items, skipped := w.Totals()
	logger.Infof("done: %d items, %d skipped", items, skipped)
	return nil
}

// resolveLayout picks one layout mode from the layout flags and builds the
// layout.Config. When several layout flags are set, a fixed precedence
// decides (-m, -e, -M, -S, -u, -r, -k); the order in which the flags appeared
// on the command line is not considered, and no error is returned.
func resolveLayout(root string, overwrite, kmail, recurse, recurseTB, sepNum, sepMH, sepMHExt, sepMHExtMsg bool) (layout.Config, error) {
	cfg := layout.Config{Root: root, Overwrite: overwrite}

	switch {
	case sepMHExtMsg:
		cfg.Mode = layout.ModeSeparate
		cfg.SeparateSubMode = layout.SeparateMHExtMsg
	case sepMHExt:
		cfg.Mode = layout.ModeSeparate
		cfg.SeparateSubMode = layout.SeparateMHExt
	case sepMH:
		cfg.Mode = layout.ModeSeparate
		cfg.SeparateSubMode = layout.SeparateMH
	case sepNum:
		cfg.Mode = layout.ModeSeparate
		cfg.SeparateSubMode = layout.SeparateNumeric
	case recurseTB:
		cfg.Mode = layout.ModeRecurse
		cfg.RecurseThunderbird = true
	case recurse:
		cfg.Mode = layout.ModeRecurse
	case kmail:
		cfg.Mode = layout.ModeKMail
	default:
		cfg.Mode = layout.ModeNormal
	}
	if root == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

// parseExtensions splits -a's comma list into a lower-cased set, resolving
// spec.md §9's Open Question in favor of a map[string]struct{} over a
// double-NUL-terminated string run.
func parseExtensions(s string) map[string]struct{} {
	if s == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, ext := range strings.Split(s, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// parseOutputTypes turns -t's letter subset (e/a/j/c) into the bitmask. An
// empty string means "all types", matching readpst.c's default.
func parseOutputTypes(s string) config.OutputType {
	if s == "" {
		return config.OutputAll
	}
	var mask config.OutputType
	for _, r := range s {
		switch r {
		case 'e':
			mask |= config.OutputEmail
		case 'a':
			mask |= config.OutputAppointment
		case 'j':
			mask |= config.OutputJournal
		case 'c':
			mask |= config.OutputContact
		}
	}
	return mask
}

func parseContactMode(s string) config.ContactMode {
	if strings.EqualFold(s, "l") {
		return config.ContactList
	}
	return config.ContactVCard
}
