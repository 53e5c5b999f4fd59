// Package vcard implements component D.2: rendering a domain.ContactItem as
// an RFC 2426 vCard 3.0 record. Grounded field-by-field on readpst.c's
// write_vcard (L2007-2162), generalized from the teacher's
// internal/pst/contact.go buildVCard (which already maps go-pst Contact
// properties onto github.com/emersion/go-vcard) to the complete field set:
// AGENT sub-card, extra categories, and the body-as-NOTE fallback that the
// teacher's CardDAV-only use case did not need.
package vcard

import (
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/mxguardian/pst-extract/internal/domain"
)

// phoneTypes maps the internal/pstsrc phone-slot key to the TEL;TYPE=
// value write_vcard emits for it (L2130-2144).
var phoneTypes = map[string][]string{
	"fax":        {"WORK", "FAX"},
	"work":       {"WORK", "VOICE"},
	"business2":  {"WORK", "VOICE"},
	"car":        {"CAR", "VOICE"},
	"homefax":    {"HOME", "FAX"},
	"home":       {"HOME", "VOICE"},
	"home2":      {"HOME", "VOICE"},
	"isdn":       {"ISDN"},
	"mobile":     {"CELL", "VOICE"},
	"other":      {"MSG"},
	"pager":      {"PAGER"},
	"primaryfax": {"FAX", "PREF"},
	"primary":    {"PHONE", "PREF"},
	"radio":      {"PCS"},
	"telex":      {"BBS"},
}

// Render builds an emersion/go-vcard Card for contact.
func Render(contact *domain.ContactItem) vcard.Card {
	card := make(vcard.Card)

	card.SetValue(vcard.FieldFormattedName, contact.DisplayName)
	card.Set(vcard.FieldName, &vcard.Field{
		Value: contact.Surname + ";" + contact.GivenName + ";" + contact.MiddleName + ";;" + contact.Generation,
	})

	if contact.Nickname != "" {
		card.SetValue(vcard.FieldNickname, contact.Nickname)
	}
	for _, email := range contact.Emails {
		if email != "" {
			card.Add(vcard.FieldEmail, &vcard.Field{Value: email, Params: vcard.Params{vcard.ParamType: {"INTERNET"}}})
		}
	}
	if contact.HasBirthday {
		card.SetValue(vcard.FieldBirthday, contact.Birthday.Format("2006-01-02"))
	}

	addAddress(card, "home", contact.HomeAddress)
	addAddress(card, "work", contact.WorkAddress)
	addAddress(card, "postal", contact.OtherAddress)

	for _, key := range orderedPhoneKeys(contact.Phones) {
		num := contact.Phones[key]
		if num == "" {
			continue
		}
		types, ok := phoneTypes[key]
		if !ok {
			types = []string{"VOICE"}
		}
		card.Add(vcard.FieldTelephone, &vcard.Field{Value: num, Params: vcard.Params{vcard.ParamType: types}})
	}

	if contact.JobTitle != "" {
		card.SetValue(vcard.FieldTitle, contact.JobTitle)
	}
	if contact.Profession != "" {
		card.SetValue(vcard.FieldRole, contact.Profession)
	}
	if contact.CompanyName != "" {
		card.SetValue(vcard.FieldOrganization, contact.CompanyName)
	}
	// Two distinct NOTE lines: the item-level comment (PR_COMMENT) first,
	// then the contact's own Notes body, matching write_vcard's separate
	// emission of comment and body text.
	if contact.Comment != "" {
		card.Add(vcard.FieldNote, &vcard.Field{Value: contact.Comment})
	}
	if contact.Note != "" {
		card.Add(vcard.FieldNote, &vcard.Field{Value: contact.Note})
	}
	if len(contact.Categories) > 0 {
		card.Set(vcard.FieldCategories, &vcard.Field{Value: joinCategories(contact.Categories)})
	}
	if contact.AssistantName != "" || contact.AssistantPhone != "" {
		card.Add(vcard.FieldAgent, &vcard.Field{Value: agentSubCard(contact)})
	}

	card.SetValue(vcard.FieldVersion, "3.0")
	return card
}

// agentSubCard builds the nested-vCard-as-TEXT value write_vcard emits for
// an assistant, per RFC 2426's AGENT property. Real newlines are used here
// rather than pre-escaped "\n" sequences so go-vcard's own encoder applies
// TEXT escaping exactly once, on the way out.
func agentSubCard(contact *domain.ContactItem) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\n")
	b.WriteString("VERSION:3.0\n")
	if contact.AssistantName != "" {
		fmt.Fprintf(&b, "FN:%s\n", contact.AssistantName)
	}
	if contact.AssistantPhone != "" {
		fmt.Fprintf(&b, "TEL:%s\n", contact.AssistantPhone)
	}
	b.WriteString("END:VCARD\n")
	return b.String()
}

// orderedPhoneKeys returns phone-map keys in the fixed order write_vcard
// emits them in, so output is reproducible across runs.
func orderedPhoneKeys(phones map[string]string) []string {
	order := []string{"fax", "work", "business2", "car", "homefax", "home", "home2", "isdn", "mobile", "other", "pager", "primaryfax", "primary", "radio", "telex"}
	var out []string
	for _, k := range order {
		if _, ok := phones[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func addAddress(card vcard.Card, typ string, addr domain.PostalAddress) {
	if addr.Street == "" && addr.City == "" && addr.State == "" && addr.Zip == "" && addr.Country == "" {
		return
	}
	card.Add(vcard.FieldAddress, &vcard.Field{
		Value:  fmt.Sprintf(";;%s;%s;%s;%s;%s", addr.Street, addr.City, addr.State, addr.Zip, addr.Country),
		Params: vcard.Params{vcard.ParamType: {typ}},
	})
	if addr.Label != "" {
		card.Add(vcard.FieldLabel, &vcard.Field{Value: addr.Label, Params: vcard.Params{vcard.ParamType: {typ}}})
	}
}

func joinCategories(categories []string) string {
	out := ""
	for i, c := range categories {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}
