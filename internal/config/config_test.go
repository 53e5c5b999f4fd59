package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsSensibleDefaults(t *testing.T) {
	c := New("archive.pst")
	assert.Equal(t, "archive.pst", c.PSTPath)
	assert.True(t, c.SaveRTFBody)
	assert.Equal(t, OutputAll, c.OutputTypes)
	assert.Equal(t, ContactVCard, c.Contact)
	assert.Greater(t, c.Concurrency, int64(0))
}

func TestOutputTypeHasChecksIndividualBits(t *testing.T) {
	mask := OutputEmail | OutputContact
	assert.True(t, mask.Has(OutputEmail))
	assert.True(t, mask.Has(OutputContact))
	assert.False(t, mask.Has(OutputAppointment))
	assert.False(t, mask.Has(OutputJournal))
}

func TestKeepAttachmentWithNoFilterKeepsEverything(t *testing.T) {
	c := New("archive.pst")
	assert.True(t, c.KeepAttachment("report.pdf"))
	assert.True(t, c.KeepAttachment("noext"))
	assert.True(t, c.KeepAttachment(""))
}

func TestKeepAttachmentFiltersByLowerCasedExtension(t *testing.T) {
	c := New("archive.pst")
	c.KeepAttachmentExts = map[string]struct{}{"pdf": {}, "jpg": {}}

	assert.True(t, c.KeepAttachment("report.PDF"))
	assert.True(t, c.KeepAttachment("photo.jpg"))
	assert.False(t, c.KeepAttachment("archive.zip"))
}

func TestKeepAttachmentAlwaysKeepsExtensionlessFiles(t *testing.T) {
	c := New("archive.pst")
	c.KeepAttachmentExts = map[string]struct{}{"pdf": {}}
	assert.True(t, c.KeepAttachment("README"))
}
