package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	q := NewQRGenerator("https://tickets.example.com/")
	assert.Equal(t, "https://tickets.example.com/t/ABCD2345", q.URL("ABCD2345"))
}

func TestPNGDecodes(t *testing.T) {
	q := NewQRGenerator("https://tickets.example.com")

	data, err := q.PNG("ABCD2345", 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())

	_, err = q.PNG("", 0)
	assert.Error(t, err)
}

func TestExtractCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ABCD2345", "ABCD2345"},
		{"  abcd2345 \n", "abcd2345"},
		{"https://tickets.example.com/t/ABCD2345", "ABCD2345"},
		{"https://tickets.example.com/v/ABCD2345?src=mail", "ABCD2345"},
		{"https://x.test/t/ABCD2345/", "ABCD2345"},
		{"https://x.test/t/", "https://x.test/t/"},
		{"https://x.test/other/ABCD2345", "https://x.test/other/ABCD2345"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractCode(tc.in), tc.in)
	}
}
