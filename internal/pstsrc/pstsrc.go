// Package pstsrc wraps github.com/mooijtech/go-pst/v6 behind a narrow
// interface that yields internal/domain items instead of go-pst's own
// property structs, so the rest of the module never imports go-pst
// directly. Grounded on the Open/Process/Close/WalkFolders shape of
// mxguardian-pst-import-tool's internal/pst/extractor.go, generalized from
// "build one RFC822 message" to "expose every item kind".
package pstsrc

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/mooijtech/go-pst/v6/pkg"
	"github.com/mooijtech/go-pst/v6/pkg/properties"

	"github.com/mxguardian/pst-extract/internal/domain"
	"github.com/mxguardian/pst-extract/internal/ical"
)

// Named property IDs in the PSETID_Address namespace (MS-OXPROPS), for the
// three email-address slots that aren't exposed as ordinary properties.
const (
	pidLidEmail1EmailAddress = 0x8083
	pidLidEmail2EmailAddress = 0x8093
	pidLidEmail3EmailAddress = 0x80A3
)

// FolderFunc is invoked on entry to each folder, before its messages are
// walked. Returning skip=true causes Archive.Walk to not descend into it.
type FolderFunc func(f domain.FolderItem) (skip bool, err error)

// ItemFunc is invoked once per item (mail, contact, appointment, journal)
// inside the current folder.
type ItemFunc func(folderPath []string, item domain.Item) error

// Archive is an opened PST file ready to be walked.
type Archive struct {
	path    string
	reader  io.ReadCloser
	pstFile *pst.File
}

// Open parses the PST file at path. The returned Archive must be closed
// with Close.
func Open(path string) (*Archive, error) {
	reader, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pstsrc: open %s: %w", path, err)
	}
	pstFile, err := pst.New(reader)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("pstsrc: parse %s: %w", path, err)
	}
	return &Archive{path: path, reader: reader, pstFile: pstFile}, nil
}

// Reopen closes the underlying file handle and opens path again, for use
// after a transient read error on a long-running extraction.
func (a *Archive) Reopen() error {
	if err := a.Close(); err != nil {
		return err
	}
	reopened, err := Open(a.path)
	if err != nil {
		return err
	}
	*a = *reopened
	return nil
}

// Close releases the PST file and its underlying reader.
func (a *Archive) Close() error {
	if a.pstFile != nil {
		a.pstFile.Cleanup()
		a.pstFile = nil
	}
	if a.reader != nil {
		err := a.reader.Close()
		a.reader = nil
		return err
	}
	return nil
}

// Walk streams through every folder in depth order, honoring onFolder's
// skip decision, calling onItem for every email/contact/appointment/journal
// item found. Deleted-Items exclusion is the caller's (internal/walker's)
// responsibility via FolderItem.IsSpecial.
func (a *Archive) Walk(onFolder FolderFunc, onItem ItemFunc) error {
	return a.pstFile.WalkFolders(func(folder *pst.Folder) error {
		fi := domain.FolderItem{
			Name:      folder.Name,
			IsSpecial: isSpecialFolder(folder.Name),
		}
		if onFolder != nil {
			skip, err := onFolder(fi)
			if err != nil {
				return err
			}
			if skip {
				return nil
			}
		}

		it, err := folder.GetMessageIterator()
		if err != nil {
			return nil // folders with no message table are not an error
		}
		for it.Next() {
			msg := it.Value()
			item, ok := a.convert(msg)
			if !ok {
				continue
			}
			item.BlockID = msg.Identifier
			if onItem != nil {
				if err := onItem([]string{folder.Name}, item); err != nil {
					return err
				}
			}
		}
		return it.Err()
	})
}

func isSpecialFolder(name string) bool {
	return name == "Deleted Items" || name == "Trash"
}

// convert populates msg's properties and classifies it by concrete property
// type, returning a domain.Item. Unrecognized property types are skipped.
func (a *Archive) convert(msg *pst.Message) (domain.Item, bool) {
	switch props := msg.Properties.(type) {
	case *properties.Message:
		if err := msg.PropertyContext.Populate(props, msg.LocalDescriptors); err != nil {
			return domain.Item{}, false
		}
		return a.convertMail(msg, props), true
	case *properties.Contact:
		if err := msg.PropertyContext.Populate(props, msg.LocalDescriptors); err != nil {
			return domain.Item{}, false
		}
		return a.convertContact(msg, props), true
	case *properties.Appointment:
		if err := msg.PropertyContext.Populate(props, msg.LocalDescriptors); err != nil {
			return domain.Item{}, false
		}
		return convertAppointment(msg, props), true
	case *properties.Journal:
		if err := msg.PropertyContext.Populate(props, msg.LocalDescriptors); err != nil {
			return domain.Item{}, false
		}
		return convertJournal(msg, props), true
	default:
		return domain.Item{}, false
	}
}

func (a *Archive) convertMail(msg *pst.Message, props *properties.Message) domain.Item {
	m := &domain.MailItem{
		TransportHeaders: props.GetTransportMessageHeaders(),
		SenderName:       props.GetSenderName(),
		SenderEmail:      props.GetSenderEmailAddress(),
		To:               props.GetDisplayTo(),
		Cc:               props.GetDisplayCc(),
		Bcc:              props.GetDisplayBcc(),
		Subject:          props.GetSubject(),
		MessageID:        props.GetInternetMessageId(),
		InReplyTo:        props.GetInReplyToId(),
		References:       props.GetInternetReferences(),
		Body:             props.GetBody(),
		BodyIsUTF8:       true,
		BodyHTML:         props.GetBodyHtml(),
		BodyHTMLIsUTF8:   true,
		BodyRTF:          props.GetRtfCompressed(),
	}
	if t := props.GetClientSubmitTime(); t > 0 {
		m.ClientSubmitTime = time.Unix(t, 0)
	}
	if t := props.GetMessageDeliveryTime(); t > 0 {
		m.MessageDeliveryTime = time.Unix(t, 0)
	}

	// item->email->encrypted_body/encrypted_htmlbody: presence of either
	// marks the item as S/MIME-encrypted, promoting whichever blob exists
	// to the plain-text body slot so collectParts can attach it verbatim.
	if crypt := props.GetBodyCrypt(); len(crypt) > 0 {
		m.IsEncrypted = true
		m.Body = string(crypt)
	} else if crypt := props.GetBodyHtmlCrypt(); len(crypt) > 0 {
		m.IsEncrypted = true
		m.Body = string(crypt)
	}

	class := props.GetMessageClass()
	if rt, ok := reportTypeForClass(class); ok {
		m.ReportType = rt
		m.ReportText = props.GetReportText()
	}
	m.Schedule = scheduleForClass(class, props)

	m.Attachments = a.convertAttachments(msg)

	return domain.Item{
		Kind:    domain.KindMail,
		BlockID: msg.Identifier,
		Read:    props.GetMessageFlags()&1 != 0, // MSGFLAG_READ, low bit of PR_MESSAGE_FLAGS
		Mail:    m,
	}
}

// reportTypeForClass maps a PR_MESSAGE_CLASS of the form "REPORT.*" to the
// multipart/report subtype write_normal_email defaults body_report to
// ("delivery-status"), overridden for the recognized read/non-read receipt
// classes readpst.c special-cases.
func reportTypeForClass(class string) (string, bool) {
	if !strings.HasPrefix(class, "REPORT.") {
		return "", false
	}
	switch {
	case strings.Contains(class, ".IPNRN"), strings.Contains(class, ".IPNNRN"): // IPM.Note.IPNRN / IPNNRN (read / non-read receipt)
		return "disposition-notification", true
	default:
		return "delivery-status", true
	}
}

// scheduleForClass builds a domain.ScheduleInfo for the IPM.Schedule.Meeting
// family of message classes, which carry a meeting-request payload alongside
// an otherwise ordinary message body.
func scheduleForClass(class string, props *properties.Message) *domain.ScheduleInfo {
	method, ok := scheduleMethodForClass(class)
	if !ok {
		return nil
	}
	s := &domain.ScheduleInfo{
		Method:    method,
		UID:       props.GetGlobalObjectID(),
		Organizer: props.GetSenderEmailAddress(),
		Summary:   props.GetConversationTopic(),
	}
	if s.Summary == "" {
		s.Summary = props.GetSubject()
	}
	if t := props.GetAppointmentStartWhole(); t > 0 {
		s.Start = time.Unix(t, 0)
	}
	if t := props.GetAppointmentEndWhole(); t > 0 {
		s.End = time.Unix(t, 0)
	}
	return s
}

func scheduleMethodForClass(class string) (string, bool) {
	switch {
	case strings.HasPrefix(class, "IPM.Schedule.Meeting.Request"):
		return "REQUEST", true
	case strings.HasPrefix(class, "IPM.Schedule.Meeting.Resp"):
		return "REPLY", true
	case strings.HasPrefix(class, "IPM.Schedule.Meeting.Cancel"):
		return "CANCEL", true
	default:
		return "", false
	}
}

// convertAttachments walks msg's attachment table, recursing into embedded
// message/rfc822 attachments (matching write_normal_email's attach-loop,
// which treats an embedded message and a regular binary attachment as
// mutually exclusive branches).
func (a *Archive) convertAttachments(msg *pst.Message) []domain.Attachment {
	it, err := msg.GetAttachmentIterator()
	if err != nil {
		return nil
	}

	var atts []domain.Attachment
	for it.Next() {
		att := it.Value()
		name := att.GetLongFilename()
		if name == "" {
			name = att.GetFilename()
		}

		if embedded, embProps, ok := a.embeddedMessage(att); ok {
			embItem := a.convertMail(embedded, embProps)
			atts = append(atts, domain.Attachment{
				Filename: name,
				MimeType: "message/rfc822",
				Embedded: embItem.Mail,
			})
			continue
		}

		data, err := att.GetData()
		if err != nil {
			continue
		}
		mimeType := att.GetMimeTag()
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		atts = append(atts, domain.Attachment{
			Filename: name,
			MimeType: mimeType,
			Data:     data,
		})
	}
	return atts
}

// embeddedMessage reports whether att is a message/rfc822 sub-attachment
// (MAPI attach method ATTACH_EMBEDDED_MSG) and, if so, returns its
// populated properties ready for a recursive convertMail call.
func (a *Archive) embeddedMessage(att *pst.Attachment) (*pst.Message, *properties.Message, bool) {
	if att.GetAttachMethod() != pst.AttachMethodEmbeddedMessage {
		return nil, nil, false
	}
	sub, err := att.GetEmbeddedMessage()
	if err != nil || sub == nil {
		return nil, nil, false
	}
	subProps, ok := sub.Properties.(*properties.Message)
	if !ok {
		return nil, nil, false
	}
	if err := sub.PropertyContext.Populate(subProps, sub.LocalDescriptors); err != nil {
		return nil, nil, false
	}
	return sub, subProps, true
}

func (a *Archive) convertContact(msg *pst.Message, props *properties.Contact) domain.Item {
	given := props.GetGivenName()
	surname := props.GetSurname()
	fileUnder := props.GetFileUnder()

	display := given
	switch {
	case given != "" && surname != "":
		display = given + " " + surname
	case surname != "":
		display = surname
	case display == "" && fileUnder != "":
		display = fileUnder
	}

	email1 := a.readNamedAddress(msg, pidLidEmail1EmailAddress)
	email2 := a.readNamedAddress(msg, pidLidEmail2EmailAddress)
	email3 := a.readNamedAddress(msg, pidLidEmail3EmailAddress)
	if display == "" {
		for _, e := range []string{email1, email2, email3} {
			if e != "" {
				display = e
				break
			}
		}
	}

	c := &domain.ContactItem{
		UID:            generateContactUID(display, email1, email2, email3),
		DisplayName:    display,
		GivenName:      given,
		Surname:        surname,
		Title:          props.GetTitle(),
		CompanyName:    props.GetCompanyName(),
		Emails:         [3]string{email1, email2, email3},
		Phones:         map[string]string{},
		Note:           props.GetBody(),
		Comment:        props.GetComment(),
		AssistantName:  props.GetAssistant(),
		AssistantPhone: props.GetAssistantTelephoneNumber(),
	}
	if p := props.GetBusinessTelephoneNumber(); p != "" {
		c.Phones["work"] = p
	}
	if p := props.GetBusiness2TelephoneNumber(); p != "" {
		c.Phones["business2"] = p
	}
	if p := props.GetHomeTelephoneNumber(); p != "" {
		c.Phones["home"] = p
	}
	if p := props.GetHome2TelephoneNumber(); p != "" {
		c.Phones["home2"] = p
	}
	if p := props.GetCarTelephoneNumber(); p != "" {
		c.Phones["car"] = p
	}
	if p := props.GetPrimaryTelephoneNumber(); p != "" {
		c.Phones["primary"] = p
	}
	c.WorkAddress = domain.PostalAddress{
		Street:  props.GetWorkAddressStreet(),
		City:    props.GetWorkAddressCity(),
		State:   props.GetWorkAddressState(),
		Zip:     props.GetWorkAddressPostalCode(),
		Country: props.GetWorkAddressCountry(),
	}
	c.HomeAddress = domain.PostalAddress{
		Street:  props.GetHomeAddressStreet(),
		City:    props.GetHomeAddressCity(),
		State:   props.GetHomeAddressStateOrProvince(),
		Zip:     props.GetHomeAddressPostalCode(),
		Country: props.GetHomeAddressCountry(),
	}
	if bday := props.GetBirthdayLocal(); bday > 0 {
		t := time.Unix(bday, 0)
		if t.Year() >= 1900 && t.Year() <= 2100 {
			c.Birthday = t
			c.HasBirthday = true
		}
	}

	return domain.Item{Kind: domain.KindContact, BlockID: msg.Identifier, Contact: c}
}

func generateContactUID(name, email1, email2, email3 string) string {
	sum := sha256.Sum256([]byte(name + "|" + email1 + "|" + email2 + "|" + email3))
	return fmt.Sprintf("%x", sum[:8])
}

func convertAppointment(msg *pst.Message, props *properties.Appointment) domain.Item {
	a := &domain.AppointmentItem{
		Summary:       props.GetSubject(),
		Description:   props.GetBody(),
		Location:      props.GetLocation(),
		FreeBusyState: freeBusyState(props.GetBusyStatus()),
		Category:      props.GetKeywords(),
	}
	if t := props.GetStartTime(); t > 0 {
		a.Start = time.Unix(t, 0)
	}
	if t := props.GetEndTime(); t > 0 {
		a.End = time.Unix(t, 0)
	}
	if t := props.GetCreationTime(); t > 0 {
		a.Created = time.Unix(t, 0)
	}
	if t := props.GetLastModificationTime(); t > 0 {
		a.LastMod = time.Unix(t, 0)
	}
	if props.GetReminderSet() {
		a.HasAlarm = true
		a.AlarmMinutes = int(props.GetReminderMinutesBeforeStart())
	} else {
		a.AlarmMinutes = -1
	}
	a.Recurrence = convertRecurrence(props)

	return domain.Item{Kind: domain.KindAppointment, BlockID: msg.Identifier, Appointment: a}
}

// freeBusyState maps PidLidBusyStatus's FREE/TENTATIVE/BUSY/OOF encoding
// (0-3) onto ical's PST_FREEBUSY_*-ordered constants.
func freeBusyState(busyStatus int32) int {
	switch busyStatus {
	case 0:
		return ical.FreeBusyFree
	case 2:
		return ical.FreeBusyBusy
	case 3:
		return ical.FreeBusyOutOfOffice
	default:
		return ical.FreeBusyTentative
	}
}

// recurrenceFreq maps PidLidRecurrenceType's DAILY/WEEKLY/MONTHLY/YEARLY
// encoding (0-3) onto the RRULE FREQ token.
var recurrenceFreq = [...]string{"DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

// convertRecurrence decodes the recurrence-pattern properties
// pst_convert_recurrence's consumer expects, returning nil for a
// non-recurring appointment.
func convertRecurrence(props *properties.Appointment) *domain.Recurrence {
	if !props.GetIsRecurring() {
		return nil
	}
	freqType := props.GetRecurrenceType()
	if freqType < 0 || int(freqType) >= len(recurrenceFreq) {
		return nil
	}
	r := &domain.Recurrence{
		Freq:     recurrenceFreq[freqType],
		Interval: int(props.GetRecurrenceInterval()),
	}
	if count := props.GetOccurrenceCount(); count > 0 {
		r.Count = int(count)
		r.HasCount = true
	}
	if dom := props.GetRecurrenceDayOfMonth(); dom > 0 {
		r.ByMonthDay = int(dom)
		r.HasByMonthDay = true
	}
	if month := props.GetRecurrenceMonth(); month > 0 {
		r.ByMonth = int(month)
		r.HasByMonth = true
	}
	r.ByDay = ical.WeekdayMaskToByDay(int(props.GetRecurrenceDayOfWeekMask()))
	return r
}

func convertJournal(msg *pst.Message, props *properties.Journal) domain.Item {
	j := &domain.JournalItem{
		Summary:     props.GetSubject(),
		Description: props.GetBody(),
	}
	return domain.Item{Kind: domain.KindJournal, BlockID: msg.Identifier, Journal: j}
}

// readNamedAddress reads a PSETID_Address named property whose value is
// stored as UTF-16LE, the same lookup mxguardian's contact.go performs
// because go-pst's Contact type does not expose these three fields
// directly.
func (a *Archive) readNamedAddress(msg *pst.Message, namedPropID int) string {
	mappedID, err := a.pstFile.NameToIDMap.GetPropertyID(namedPropID, pst.PropertySetAddress)
	if err != nil {
		return ""
	}
	reader, err := msg.PropertyContext.GetPropertyReader(uint16(mappedID), msg.LocalDescriptors)
	if err != nil {
		return ""
	}
	data := make([]byte, reader.Size())
	if _, err := reader.ReadAt(data, 0); err != nil {
		return ""
	}
	return decodeUTF16LE(data)
}

func decodeUTF16LE(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	u16s := make([]uint16, len(data)/2)
	for i := range u16s {
		u16s[i] = uint16(data[i*2]) | uint16(data[i*2+1])<<8
	}
	return string(utf16.Decode(u16s))
}
