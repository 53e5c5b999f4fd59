package vcard

import (
	"bytes"
	"testing"

	"github.com/emersion/go-vcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxguardian/pst-extract/internal/domain"
)

func TestRenderEncodesAndRoundTrips(t *testing.T) {
	contact := &domain.ContactItem{
		DisplayName: "Ada Lovelace",
		GivenName:   "Ada",
		Surname:     "Lovelace",
		Emails:      [3]string{"ada@example.com", "", ""},
		CompanyName: "Analytical Engines Ltd",
		JobTitle:    "Mathematician",
		Phones:      map[string]string{"work": "+1 555 0100"},
		HomeAddress: domain.PostalAddress{Street: "12 Curzon St", City: "London", Country: "UK"},
	}

	card := Render(contact)

	var buf bytes.Buffer
	enc := vcard.NewEncoder(&buf)
	require.NoError(t, enc.Encode(card))

	decoded, err := vcard.NewDecoder(bytes.NewReader(buf.Bytes())).Decode()
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", decoded.PreferredValue(vcard.FieldFormattedName))
	assert.Equal(t, "3.0", decoded.PreferredValue(vcard.FieldVersion))
	assert.Equal(t, "Analytical Engines Ltd", decoded.PreferredValue(vcard.FieldOrganization))

	emails := decoded[vcard.FieldEmail]
	require.Len(t, emails, 1)
	assert.Equal(t, "ada@example.com", emails[0].Value)

	tels := decoded[vcard.FieldTelephone]
	require.Len(t, tels, 1)
	assert.Equal(t, "+1 555 0100", tels[0].Value)
	assert.Contains(t, tels[0].Params[vcard.ParamType], "WORK")
}

func TestRenderSkipsEmptyAddresses(t *testing.T) {
	contact := &domain.ContactItem{DisplayName: "No Address"}
	card := Render(contact)
	assert.Empty(t, card[vcard.FieldAddress])
}

func TestRenderOrdersPhonesDeterministically(t *testing.T) {
	contact := &domain.ContactItem{
		DisplayName: "Many Phones",
		Phones:      map[string]string{"mobile": "1", "home": "2", "work": "3"},
	}
	card := Render(contact)
	tels := card[vcard.FieldTelephone]
	require.Len(t, tels, 3)
	assert.Equal(t, "3", tels[0].Value)
	assert.Equal(t, "2", tels[1].Value)
	assert.Equal(t, "1", tels[2].Value)
}
