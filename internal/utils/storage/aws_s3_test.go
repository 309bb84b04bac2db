package storage

import (
	"Foodgram-Backend/domain"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64Image(t *testing.T) {
	payload := []byte("fake image bytes")
	encoded := base64.StdEncoding.EncodeToString(payload)

	data, ext, err := DecodeBase64Image("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "png", ext)
}

func TestDecodeBase64ImageExtensionFromSubtype(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("x"))

	_, ext, err := DecodeBase64Image("data:image/jpeg;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ext)
}

func TestDecodeBase64ImageRejectsBadInput(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("x"))

	cases := []struct {
		name    string
		dataURI string
	}{
		{"not a data uri", "hello world"},
		{"wrong mime type", "data:text/plain;base64," + encoded},
		{"missing base64 marker", "data:image/png," + encoded},
		{"missing subtype", "data:image;base64," + encoded},
		{"invalid payload", "data:image/png;base64,!!!not-base64!!!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeBase64Image(tc.dataURI)
			assert.ErrorIs(t, err, domain.ErrInvalidImage)
		})
	}
}
