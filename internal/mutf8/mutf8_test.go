package mutf8

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePlainASCII(t *testing.T) {
	require.Equal(t, "Hello, World!", Decode([]byte("Hello, World!")))
}

func TestDecodeEmbeddedNulOverlong(t *testing.T) {
	// dex encodes a literal NUL char as the overlong two-byte sequence
	// 0xC0 0x80 rather than a raw 0x00 byte (which terminates the string).
	b := []byte{'a', 0xC0, 0x80, 'b'}
	got := Decode(b)
	require.Equal(t, "a\x00b", got)
}

func TestDecodeBMPThreeByteSequence(t *testing.T) {
	// U+20AC EURO SIGN, a plain (non-surrogate) 3-byte UTF-8 sequence,
	// decodes identically under both mutf8 and strict UTF-8.
	b := []byte("€")
	require.Equal(t, "€", Decode(b))
}

func TestDecodeSurrogatePairRecombination(t *testing.T) {
	// U+1F600 GRINNING FACE, encoded the way dex stores astral characters:
	// as two CESU-8 3-byte surrogate sequences (high D83D, low DE00)
	// instead of one 4-byte UTF-8 sequence.
	high := []byte{0xED, 0xA0, 0xBD} // 0xD83D
	low := []byte{0xED, 0xB8, 0x80}  // 0xDE00
	b := append(append([]byte{}, high...), low...)

	got := Decode(b)
	require.Equal(t, "\U0001F600", got)
}

func TestDecodeUnpairedSurrogatePassesThrough(t *testing.T) {
	high := []byte{0xED, 0xA0, 0xBD} // 0xD83D, with nothing following it
	got := Decode(high)
	require.Len(t, []rune(got), 1)
}
