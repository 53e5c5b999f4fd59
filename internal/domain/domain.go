// Package domain models a single extracted PST item independently of the
// go-pst library types that produce it, so the renderer packages (mailmsg,
// vcard, ical) depend only on plain Go structs.
package domain

import "time"

// Kind distinguishes the five item shapes a folder can yield.
type Kind int

const (
	KindFolder Kind = iota
	KindMail
	KindContact
	KindAppointment
	KindJournal
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindMail:
		return "mail"
	case KindContact:
		return "contact"
	case KindAppointment:
		return "appointment"
	case KindJournal:
		return "journal"
	default:
		return "unknown"
	}
}

// Item is the tagged-union envelope every walker callback receives. Exactly
// one of Mail, Contact, Appointment, Journal is non-nil, matching Kind.
type Item struct {
	Kind        Kind
	BlockID     uint64 // stable id, source of deterministic boundaries/UIDs
	Read        bool   // PR_MESSAGE_FLAGS MSGFLAG_READ
	Mail        *MailItem
	Contact     *ContactItem
	Appointment *AppointmentItem
	Journal     *JournalItem
}

// Attachment is a single MIME part attached to a MailItem: an inline body
// promotion (RTF, encrypted body), a referenced filesystem file (separate
// mode), or an embedded message/rfc822 (with its own header block and, for
// recursion, its own Body).
type Attachment struct {
	Filename    string
	MimeType    string
	Data        []byte
	Embedded    *MailItem // non-nil for a message/rfc822 attachment
	ReferenceOf string    // set in MODE_SEPARATE: path the body was written to instead of inlined
}

// MailItem is a single email message plus everything write_normal_email
// needs to serialize it.
type MailItem struct {
	TransportHeaders string // raw headers captured off the wire, if any
	HeadersValid     bool   // header.IsValid(TransportHeaders)

	SenderName  string
	SenderEmail string
	From        string
	To          string
	Cc          string
	Bcc         string
	Subject     string
	MessageID   string
	InReplyTo   string
	References  string

	ClientSubmitTime   time.Time
	MessageDeliveryTime time.Time

	Body       string
	BodyIsUTF8 bool
	BodyHTML   string
	BodyHTMLIsUTF8 bool
	BodyRTF    []byte // compressed RTF payload, decompressed by internal/rtf

	ReportType string // multipart/report subtype, e.g. "delivery-status"
	ReportText string // item.email.report_text: leading text/plain part for report items

	IsEncrypted bool

	Attachments []Attachment

	Schedule *ScheduleInfo // non-nil if this item also carries meeting-request data
}

// ScheduleInfo captures the subset of appointment-request fields
// write_schedule_part needs to emit a text/calendar method part alongside a
// normal mail body.
type ScheduleInfo struct {
	Method    string // REQUEST, REPLY, CANCEL, ...
	UID       string
	Organizer string
	Summary   string
	Start     time.Time
	End       time.Time
}

// ContactItem is a single PST contact record.
type ContactItem struct {
	UID string

	DisplayName  string
	Nickname     string
	GivenName    string
	Surname      string
	MiddleName   string
	Title        string
	Generation   string

	Emails [3]string // PidLidEmail1EmailAddress..3, first 3 only per original

	HomeAddress    PostalAddress
	WorkAddress    PostalAddress
	OtherAddress   PostalAddress

	Phones map[string]string // key is a phone-slot name that internal/vcard maps to TEL;TYPE= values, e.g. "work", "home2"

	JobTitle     string
	Profession   string
	CompanyName  string
	Birthday     time.Time
	HasBirthday  bool

	Note       string // the contact's own Notes body, second NOTE line
	Comment    string // item-level PR_COMMENT, first NOTE line
	Categories []string

	AssistantName  string // AGENT sub-card FN
	AssistantPhone string // AGENT sub-card TEL
}

// PostalAddress mirrors the ADR components write_vcard emits.
type PostalAddress struct {
	Street   string
	City     string
	State    string
	Zip      string
	Country  string
	Label    string
}

// AppointmentItem is a single PST calendar item.
type AppointmentItem struct {
	UID         string
	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	Created  time.Time
	LastMod  time.Time

	FreeBusyState int // maps to STATUS/TRANSP, see internal/ical
	Category      string

	Recurrence *Recurrence

	AlarmMinutes int  // < 0 means no alarm
	HasAlarm     bool
}

// Recurrence mirrors pst_convert_recurrence's decoded fields.
type Recurrence struct {
	Freq      string // DAILY, WEEKLY, MONTHLY, YEARLY
	Count     int
	HasCount  bool
	Interval  int
	ByMonthDay int
	HasByMonthDay bool
	ByMonth   int
	HasByMonth bool
	BySetPos  int
	HasBySetPos bool
	ByDay     []string // decoded from the 7-bit weekday mask
}

// JournalItem is a single PST journal (VJOURNAL) entry.
type JournalItem struct {
	Summary     string
	Description string
	Start       time.Time
	HasStart    bool
	Created     time.Time
	LastMod     time.Time
}

// FolderItem marks entry into a PST folder for the walker/layout drivers.
type FolderItem struct {
	Name       string
	Path       []string // ancestor folder names, root first
	IsSpecial  bool      // e.g. "Deleted Items"
	MessageCount int
}
