package decoding

import (
	"fmt"
	"hash/crc32"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode produces wire lines the way a poster would, dot-stuffing included.
func encode(data []byte, lineLen int) [][]byte {
	var lines [][]byte
	var cur []byte
	for _, b := range data {
		c := b + 42
		switch c {
		case 0, '\n', '\r', '=':
			cur = append(cur, '=', c+64)
		default:
			cur = append(cur, c)
		}
		if len(cur) >= lineLen {
			lines = append(lines, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	for i, l := range lines {
		if l[0] == '.' {
			lines[i] = append([]byte{'.'}, l...)
		}
	}
	return lines
}

func sample() []byte {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	// force a line that starts with '.' after encoding ('.' - 42 = 4)
	data[0] = 4
	return data
}

func TestDecodeSinglePart(t *testing.T) {
	data := sample()
	lines := [][]byte{[]byte("some preamble")}
	lines = append(lines, []byte(fmt.Sprintf("=ybegin line=128 size=%d name=my file.bin", len(data))))
	lines = append(lines, encode(data, 128)...)
	lines = append(lines, []byte(fmt.Sprintf("=yend size=%d crc32=%08x", len(data), crc32.ChecksumIEEE(data))))

	p, err := Decode(slices.Values(lines))
	require.NoError(t, err)
	assert.Equal(t, "my file.bin", p.Name)
	assert.Equal(t, int64(len(data)), p.Size)
	assert.Equal(t, 128, p.LineLen)
	assert.False(t, p.IsMultipart())
	assert.Equal(t, data, p.Data)
	assert.NoError(t, p.Verify())
}

func TestDecodeMultiPart(t *testing.T) {
	data := sample()[:300]
	lines := [][]byte{
		[]byte("=ybegin part=2 total=5 line=64 size=1500 name=archive.rar"),
		[]byte("=ypart begin=301 end=600"),
	}
	lines = append(lines, encode(data, 64)...)
	lines = append(lines, []byte(fmt.Sprintf("=yend size=300 part=2 pcrc32=%08X", crc32.ChecksumIEEE(data))))

	p, err := Decode(slices.Values(lines))
	require.NoError(t, err)
	assert.True(t, p.IsMultipart())
	assert.Equal(t, 2, p.Number)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, int64(301), p.Begin)
	assert.Equal(t, int64(600), p.End)
	assert.Equal(t, data, p.Data)
	assert.NoError(t, p.Verify())
}

func TestVerifyDetectsCorruption(t *testing.T) {
	data := []byte("hello yenc")
	enc := encode(data, 128)
	enc[0][0]++
	lines := [][]byte{[]byte("=ybegin line=128 size=10 name=x")}
	lines = append(lines, enc...)
	lines = append(lines, []byte(fmt.Sprintf("=yend size=10 crc32=%08x", crc32.ChecksumIEEE(data))))

	p, err := Decode(slices.Values(lines))
	require.NoError(t, err)
	assert.ErrorContains(t, p.Verify(), "checksum mismatch")
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(slices.Values([][]byte{[]byte("plain text body")}))
	assert.ErrorIs(t, err, ErrHeaderNotFound)

	_, err = Decode(slices.Values([][]byte{[]byte("=ybegin line=128 size=3 name=x"), []byte("abc")}))
	assert.ErrorIs(t, err, ErrFooterNotFound)

	_, err = Decode(slices.Values([][]byte{[]byte("=ybegin line=128 name=x")}))
	assert.ErrorContains(t, err, "missing size")
}

func TestKeywords(t *testing.T) {
	kv := keywords("line=128 size=42 name=  spaced  name.bin  ")
	assert.Equal(t, "  spaced  name.bin", kv["name"])
	assert.Equal(t, "128", kv["line"])
	assert.Equal(t, "42", kv["size"])
	assert.False(t, strings.Contains(kv["size"], " "))
}
