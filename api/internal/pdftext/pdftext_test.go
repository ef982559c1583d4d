package pdftext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.True(t, IsPDF(append([]byte{0xEF, 0xBB, 0xBF}, []byte("%PDF-1.4")...)))
	assert.False(t, IsPDF([]byte("PK\x03\x04 zip")))
	assert.False(t, IsPDF(nil))
}

func TestExtract_NotPDF(t *testing.T) {
	_, err := Extractor{}.Extract(context.Background(), []byte("hello world"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestExtract_GarbageAfterHeader(t *testing.T) {
	_, err := Extractor{}.Extract(context.Background(), []byte("%PDF-1.4\nthis is not really a pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPDF)
}
