package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainTextExtractor(t *testing.T) {
	e := NewPlainTextExtractor()

	text, err := e.Extract(context.Background(), strings.NewReader("hello world"), "notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestPlainTextExtractor_ReadError(t *testing.T) {
	e := NewPlainTextExtractor()

	boom := errors.New("disk on fire")
	_, err := e.Extract(context.Background(), iotest.ErrReader(boom), "notes.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "notes.txt")
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.Extract(context.Background(), strings.NewReader("just text"), "fake.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake.pdf")
}

func TestAutoExtractor_PlainTextPassthrough(t *testing.T) {
	e := NewAutoExtractor()

	for _, filename := range []string{"notes.txt", "readme.md", "noextension"} {
		text, err := e.Extract(context.Background(), strings.NewReader("content"), filename)
		require.NoError(t, err)
		assert.Equal(t, "content", text)
	}
}

func TestAutoExtractor_DispatchesPDFByExtension(t *testing.T) {
	e := NewAutoExtractor()

	// Not a real PDF, so reaching the PDF parser shows up as a parse error
	// rather than a plain-text passthrough.
	for _, filename := range []string{"doc.pdf", "DOC.PDF", "doc.Pdf"} {
		_, err := e.Extract(context.Background(), strings.NewReader("just text"), filename)
		assert.Error(t, err, filename)
	}
}
