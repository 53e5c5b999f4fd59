package rtf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(compSize, rawSize uint32, magic [4]byte) []byte {
	h := make([]byte, 16)
	binary.LittleEndian.PutUint32(h[0:4], compSize)
	binary.LittleEndian.PutUint32(h[4:8], rawSize)
	copy(h[8:12], magic[:])
	return h
}

func TestDecompressUncompressedPassesThrough(t *testing.T) {
	raw := []byte(`{\rtf1 hello world}`)
	h := header(uint32(len(raw)+12), uint32(len(raw)), magicUncompressed)
	got, err := Decompress(append(h, raw...))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecompressRejectsUnknownMagic(t *testing.T) {
	h := header(12, 0, [4]byte{'X', 'X', 'X', 'X'})
	_, err := Decompress(h)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecompressRejectsTruncatedInput(t *testing.T) {
	_, err := Decompress([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecompressLiteralOnlyCompressedStream(t *testing.T) {
	// A single control byte of 0x00 means all 8 following bytes are literals.
	payload := append([]byte{0x00}, []byte("ABCDEFGH")...)
	h := header(uint32(len(payload)+12), 8, magicCompressed)
	got, err := Decompress(append(h, payload...))
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", string(got))
}

func TestDecompressBackReferenceIntoDictionary(t *testing.T) {
	// offset 0, length 2+0=2 copies the first two dictionary bytes "{\".
	token := uint16(0)<<4 | uint16(0)
	payload := []byte{0x01, byte(token >> 8), byte(token)}
	h := header(uint32(len(payload)+12), 2, magicCompressed)
	got, err := Decompress(append(h, payload...))
	require.NoError(t, err)
	assert.Equal(t, dict[:2], string(got))
}
