// Package mailmsg implements component D.1: rendering a domain.MailItem as
// an RFC 5322 message, optionally wrapped in MIME multipart structure.
// Grounded on readpst.c's write_normal_email (L1677-2004) for the overall
// algorithm, generalized from fprintf-style concatenation to
// github.com/emersion/go-message's Header/Writer so header folding and
// RFC 2047 word encoding are handled by the library rather than by hand.
package mailmsg

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/mxguardian/pst-extract/internal/body"
	"github.com/mxguardian/pst-extract/internal/domain"
	"github.com/mxguardian/pst-extract/internal/header"
	"github.com/mxguardian/pst-extract/internal/ical"
	"github.com/mxguardian/pst-extract/internal/rtf"
	"github.com/mxguardian/pst-extract/internal/sanitize"
)

// Options controls rendering decisions that vary by CLI flag.
type Options struct {
	Charset    string // target charset for text bodies, e.g. "utf-8"
	PreferUTF8 bool
	SaveRTF    bool // promote the RTF body to an application/rtf attachment
	ForMbox    bool // body text needs ">From " quoting because it is embedded in an mbox file

	// Embedded marks a recursive Render call for a message/rfc822
	// attachment: the mbox separator (if any) gets a leading ">".
	Embedded bool

	// KeepAttachment is the -a extension allow-list (config.Config.KeepAttachment).
	// Nil means keep every attachment.
	KeepAttachment func(filename string) bool

	// SeparateAttachments is set in ModeSeparate/SeparateNumeric (-S, MH
	// off): regular attachments are dropped from the rendered MIME
	// structure because internal/walker writes them as sibling files
	// instead. Embedded message/rfc822 attachments are unaffected; they
	// are never written separately (see write_separate_attachment's
	// dispatch, which only ever sees non-embedded attachments).
	SeparateAttachments bool
}

// Render builds the complete RFC 5322 message for item, returning the bytes
// to write to the output file (mbox body or standalone .eml), or an error if
// the MIME writer fails.
func Render(item *domain.MailItem, opts Options, blockID uint64) ([]byte, error) {
	var buf bytes.Buffer

	if opts.ForMbox {
		buf.WriteString(mboxFromLine(item, opts.Embedded))
	}

	hdr, bodySource, ov := buildHeader(item, blockID)
	if ov.Charset != "" {
		opts.Charset = ov.Charset
	}
	reportType := item.ReportType
	if ov.ReportType != "" {
		reportType = ov.ReportType
	}

	parts := collectParts(item, opts, blockID)
	if len(parts) == 0 && item.ReportText == "" && (item.Body == "" || item.BodyHTML == "") {
		// Nothing to attach and at most one body; emit a single-part message.
		return renderSinglePart(&buf, hdr, item, opts)
	}

	if item.ReportType != "" {
		hdr.Header.SetContentType("multipart/report", map[string]string{
			"boundary":    Boundary(blockID),
			"report-type": reportType,
		})
	} else {
		hdr.Header.SetContentType("multipart/mixed", map[string]string{"boundary": Boundary(blockID)})
	}

	w, err := message.CreateWriter(&buf, hdr.Header)
	if err != nil {
		return nil, fmt.Errorf("mailmsg: create writer: %w", err)
	}

	if err := writeParts(w, item, opts, blockID, parts); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mailmsg: close writer: %w", err)
	}

	_ = bodySource
	return buf.Bytes(), nil
}

// mboxFromLine renders the "From <sender> <ctime>" mbox separator line
// write_normal_email emits before a message's own headers (step 6), with a
// leading ">" when the message is being serialized as a nested message/rfc822
// attachment (mboxrd-style quoting of a "From " line that isn't really a
// separator at the top level).
func mboxFromLine(item *domain.MailItem, embedded bool) string {
	sender := item.SenderEmail
	if !strings.Contains(sender, "@") {
		sender = "MAILER-DAEMON"
	}
	date := item.ClientSubmitTime
	if date.IsZero() {
		date = item.MessageDeliveryTime
	}
	ctime := "Thu Jan  1 00:00:00 1970"
	if !date.IsZero() {
		ctime = date.UTC().Format("Mon Jan _2 15:04:05 2006")
	}
	prefix := ""
	if embedded {
		prefix = ">"
	}
	return fmt.Sprintf("%sFrom %q %s\n", prefix, sender, ctime)
}

// bodySource records whether headers came from the original transport block
// or were synthesized, for callers that need to log it (component H -v).
type bodySource int

const (
	sourceSynthesized bodySource = iota
	sourceTransport
)

type renderHeader struct {
	Header message.Header
}

// headerOverrides captures the charset/report-type subfields of a
// discovered Content-Type: header (step 5), which take precedence over the
// PST-derived defaults the caller otherwise uses.
type headerOverrides struct {
	Charset    string
	ReportType string
}

// buildHeader implements valid_headers()'s source-selection step: reuse the
// transport header block (stripped of MIME-management fields we re-derive)
// when header.IsValid reports it usable, else synthesize every field from
// domain.MailItem, matching readpst.c's two-branch structure.
func buildHeader(item *domain.MailItem, blockID uint64) (renderHeader, bodySource, headerOverrides) {
	var h message.Header
	var ov headerOverrides

	if item.HeadersValid && header.IsValid(item.TransportHeaders) {
		if ct, ok := header.GetField(item.TransportHeaders, "Content-Type:"); ok {
			if cs, ok := header.GetSubfield(ct, "charset"); ok {
				ov.Charset = cs
			}
			if rt, ok := header.GetSubfield(ct, "report-type"); ok {
				ov.ReportType = rt
			}
		}
		stripped := header.StripManaged(item.TransportHeaders)
		for _, f := range header.ParseFields(stripped) {
			h.Set(f.Name, strings.ReplaceAll(f.Value, "\n", " "))
		}
		if item.Read {
			h.Set("Status", "RO")
		}
		return renderHeader{Header: h}, sourceTransport, ov
	}

	mh := mail.Header{Header: h}
	if item.SenderEmail != "" {
		mh.SetAddressList("From", []*mail.Address{{Name: item.SenderName, Address: item.SenderEmail}})
	} else {
		mh.SetAddressList("From", []*mail.Address{{Address: "MAILER-DAEMON"}})
	}
	if item.Subject != "" {
		mh.SetSubject(item.Subject)
	}
	if item.To != "" {
		mh.Set("To", item.To)
	}
	if item.Cc != "" {
		mh.Set("Cc", item.Cc)
	}
	if item.InReplyTo != "" {
		mh.Set("In-Reply-To", item.InReplyTo)
	}
	if item.References != "" {
		mh.Set("References", item.References)
	}
	date := item.ClientSubmitTime
	if date.IsZero() {
		date = item.MessageDeliveryTime
	}
	if date.IsZero() {
		date = time.Unix(0, 0).UTC()
	}
	mh.SetDate(date)
	msgID := item.MessageID
	if msgID == "" {
		msgID = fmt.Sprintf("<%d.pst-extract@localhost>", blockID)
	}
	mh.Set("Message-Id", msgID)
	if item.Read {
		mh.Set("Status", "RO")
	}
	mh.Set("X-libpst-forensic-sender", item.SenderEmail)
	if item.Bcc != "" {
		mh.Set("X-libpst-forensic-bcc", item.Bcc)
	}

	return renderHeader{Header: mh.Header}, sourceSynthesized, ov
}

// renderablePart is one body/attachment unit ready to go into a multipart
// envelope, already charset-resolved and base64-decided.
type renderablePart struct {
	contentType string
	params      map[string]string
	base64      bool
	data        []byte
	disposition string // "", "inline", or "attachment"
	filename    string
}

// collectParts enumerates every MIME part a MailItem needs beyond the
// primary text body: the decompressed RTF promoted to application/rtf (if
// requested and present), the encrypted-body fallback, the meeting-request
// text/calendar parts, and the item's own attachments. Returns an empty
// slice when only a single plain/HTML body is needed, in which case the
// caller takes the single-part path.
func collectParts(item *domain.MailItem, opts Options, blockID uint64) []renderablePart {
	var parts []renderablePart

	if opts.SaveRTF && len(item.BodyRTF) > 0 {
		if plain, err := rtf.Decompress(item.BodyRTF); err == nil {
			parts = append(parts, renderablePart{
				contentType: "application/rtf",
				data:        plain,
				disposition: "attachment",
				filename:    "rtf-body.rtf",
			})
		}
	}

	if item.IsEncrypted {
		parts = append(parts, renderablePart{
			contentType: "application/octet-stream",
			data:        []byte(item.Body),
			disposition: "attachment",
			filename:    "encrypted-body.bin",
		})
	}

	if item.Schedule != nil {
		cal := []byte(renderScheduleText(item.Schedule))
		parts = append(parts, renderablePart{
			contentType: "text/calendar",
			params:      map[string]string{"method": item.Schedule.Method},
			data:        cal,
			disposition: "inline",
		})
		parts = append(parts, renderablePart{
			contentType: "text/calendar",
			data:        cal,
			disposition: "attachment",
			filename:    fmt.Sprintf("i%x.ics", blockID),
		})
	}

	for _, att := range item.Attachments {
		if att.Embedded != nil {
			// Embedded messages are always inlined, even in
			// SeparateAttachments mode; write_separate_attachment's
			// dispatch only ever applies to regular attachments.
			sub, err := Render(att.Embedded, embeddedOpts(opts), 0)
			if err != nil {
				continue
			}
			parts = append(parts, renderablePart{
				contentType: "message/rfc822",
				data:        sub,
				disposition: "attachment",
				filename:    att.Filename,
			})
			continue
		}
		if opts.KeepAttachment != nil && !opts.KeepAttachment(att.Filename) {
			continue
		}
		if opts.SeparateAttachments {
			// Written as a sibling file by internal/walker instead of
			// being inlined here.
			continue
		}
		parts = append(parts, renderablePart{
			contentType: att.MimeType,
			data:        att.Data,
			disposition: "attachment",
			filename:    att.Filename,
		})
	}

	return parts
}

// embeddedOpts derives the Options used to recursively render a
// message/rfc822 attachment: same rendering decisions as the parent, but
// marked as embedded for the mbox separator's leading ">".
func embeddedOpts(opts Options) Options {
	o := opts
	o.Embedded = true
	return o
}

// renderScheduleText builds the VCALENDAR/VEVENT text shared by the inline
// and attachment text/calendar parts write_schedule_part emits for a
// meeting request.
func renderScheduleText(s *domain.ScheduleInfo) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\n")
	b.WriteString("VERSION:2.0\n")
	fmt.Fprintf(&b, "METHOD:%s\n", s.Method)
	b.WriteString("BEGIN:VEVENT\n")
	fmt.Fprintf(&b, "UID:%s\n", ical.Escape(s.UID))
	if s.Organizer != "" {
		fmt.Fprintf(&b, "ORGANIZER:MAILTO:%s\n", s.Organizer)
	}
	if s.Summary != "" {
		fmt.Fprintf(&b, "SUMMARY:%s\n", ical.Escape(s.Summary))
	}
	if !s.Start.IsZero() {
		fmt.Fprintf(&b, "DTSTART:%s\n", ical.FormatDateTime(s.Start))
	}
	if !s.End.IsZero() {
		fmt.Fprintf(&b, "DTEND:%s\n", ical.FormatDateTime(s.End))
	}
	b.WriteString("END:VEVENT\n")
	b.WriteString("END:VCALENDAR\n")
	return b.String()
}

// writeParts writes the report lead part (if any), the primary body (as a
// nested multipart/alternative when both plain and HTML exist), then every
// collected attachment/calendar part, into the already-opened multipart
// writer w.
func writeParts(w *message.Writer, item *domain.MailItem, opts Options, blockID uint64, parts []renderablePart) error {
	if item.ReportType != "" && item.ReportText != "" {
		if err := writeTextPart(w, item.ReportText, true, opts, "text/plain"); err != nil {
			return err
		}
	}
	if err := writeBody(w, item, opts, blockID); err != nil {
		return err
	}
	for _, p := range parts {
		if err := writePart(w, p); err != nil {
			return err
		}
	}
	return nil
}

func writeBody(w *message.Writer, item *domain.MailItem, opts Options, blockID uint64) error {
	hasPlain := item.Body != ""
	hasHTML := item.BodyHTML != ""

	if hasPlain && hasHTML {
		var ih message.Header
		ih.SetContentType("multipart/alternative", map[string]string{"boundary": AltBoundary(blockID)})
		pw, err := w.CreatePart(ih)
		if err != nil {
			return err
		}
		inner, err := message.CreateWriter(pw, ih)
		if err != nil {
			return err
		}
		if err := writeTextPart(inner, item.Body, item.BodyIsUTF8, opts, "text/plain"); err != nil {
			return err
		}
		if err := writeTextPart(inner, item.BodyHTML, item.BodyHTMLIsUTF8, opts, "text/html"); err != nil {
			return err
		}
		if err := inner.Close(); err != nil {
			return err
		}
		return pw.Close()
	}
	if hasHTML {
		return writeTopLevelTextPart(w, item.BodyHTML, item.BodyHTMLIsUTF8, opts, "text/html")
	}
	return writeTopLevelTextPart(w, item.Body, item.BodyIsUTF8, opts, "text/plain")
}

func writeTextPart(w *message.Writer, text string, isUTF8 bool, opts Options, mimeType string) error {
	charset, data := resolveTextBody(text, isUTF8, opts, mimeType)
	var h message.Header
	h.SetContentType(mimeType, map[string]string{"charset": charset})
	needsB64 := body.NeedsBase64(data)
	if needsB64 {
		h.Set("Content-Transfer-Encoding", "base64")
		data = encodeBase64(data)
	}
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(data); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func writeTopLevelTextPart(w *message.Writer, text string, isUTF8 bool, opts Options, mimeType string) error {
	return writeTextPart(w, text, isUTF8, opts, mimeType)
}

func resolveTextBody(text string, isUTF8 bool, opts Options, mimeType string) (string, []byte) {
	charset := opts.Charset
	if mimeType == "text/html" {
		if declared, ok := body.FindHTMLCharset(text); ok {
			charset = declared
		}
	}
	cs, data := body.Resolve(text, isUTF8, charset, opts.PreferUTF8)
	if opts.ForMbox && mimeType == "text/plain" {
		data = []byte(body.QuoteMboxFrom(string(data)))
	}
	return cs, data
}

func writePart(w *message.Writer, p renderablePart) error {
	var h message.Header
	params := p.params
	if params == nil {
		params = map[string]string{}
	}
	h.SetContentType(p.contentType, params)
	switch {
	case p.disposition == "":
		// no Content-Disposition at all
	case p.filename == "":
		h.SetContentDisposition(p.disposition, nil)
	case needsExtendedFilename(p.filename):
		// Long or non-ASCII filename: emit both the RFC 2231 extended
		// form and a backslash-quoted best-effort fallback.
		h.Set("Content-Disposition", fmt.Sprintf(`%s; filename*=%s; filename="%s"`,
			p.disposition, sanitize.RFC2231Encode(p.filename), sanitize.BackslashQuote(p.filename)))
	default:
		h.SetContentDisposition(p.disposition, map[string]string{"filename": p.filename})
	}
	data := p.data
	if body.NeedsBase64(data) || p.disposition == "attachment" {
		h.Set("Content-Transfer-Encoding", "base64")
		data = encodeBase64(data)
	}
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(data); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

// needsExtendedFilename reports whether filename is long enough or
// non-ASCII enough that a bare filename="..." param risks mis-rendering in
// a mail client, matching testable property 8's rfc2231-encoding trigger.
func needsExtendedFilename(filename string) bool {
	if len(filename) > 75 {
		return true
	}
	for i := 0; i < len(filename); i++ {
		if filename[i] >= 0x80 {
			return true
		}
	}
	return false
}

// encodeBase64 wraps the base64 alphabet at 76 columns per RFC 2045 §6.8.
func encodeBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// renderSinglePart handles the no-attachments, single-body case: no
// multipart envelope at all, matching write_normal_email's plain-message
// branch when the item has neither an alternative body nor attachments.
func renderSinglePart(buf *bytes.Buffer, hdr renderHeader, item *domain.MailItem, opts Options) ([]byte, error) {
	mimeType := "text/plain"
	text := item.Body
	isUTF8 := item.BodyIsUTF8
	if text == "" && item.BodyHTML != "" {
		mimeType = "text/html"
		text = item.BodyHTML
		isUTF8 = item.BodyHTMLIsUTF8
	}
	charset, data := resolveTextBody(text, isUTF8, opts, mimeType)
	hdr.Header.SetContentType(mimeType, map[string]string{"charset": charset})
	if body.NeedsBase64(data) {
		hdr.Header.Set("Content-Transfer-Encoding", "base64")
		data = encodeBase64(data)
	}
	w, err := message.CreateWriter(buf, hdr.Header)
	if err != nil {
		return nil, fmt.Errorf("mailmsg: create writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
