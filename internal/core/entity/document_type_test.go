package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/apperror"
)

func TestParseDocumentType(t *testing.T) {
	for _, dt := range AllDocumentTypes {
		got, err := ParseDocumentType(string(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	_, err := ParseDocumentType("delivery_note")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestDocumentType_IsReceipt(t *testing.T) {
	assert.True(t, DocumentTypeReceipt.IsReceipt())
	assert.False(t, DocumentTypeInvoice.IsReceipt())
}
