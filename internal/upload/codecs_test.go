package upload

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetadataEncoder(t *testing.T) {
	body, contentType, err := defaultMetadataEncoder(map[string]string{"name": "file.txt"})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=UTF-8", contentType)

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"file.txt"}`, string(b))
}

func TestDefaultErrorDecoder_GoogleEnvelope(t *testing.T) {
	raw := []byte(`{"error":{"code":403,"message":"Login Required","errors":[
		{"domain":"global","reason":"required","message":"Login Required","location":"Authorization","locationType":"header"}
	]}}`)

	se, err := defaultErrorDecoder(403, raw)
	require.NoError(t, err)
	assert.Equal(t, 403, se.StatusCode)
	assert.Equal(t, "403", se.Code)
	assert.Equal(t, "Login Required", se.Message)
	require.Len(t, se.Errors, 1)
	assert.Equal(t, "global", se.Errors[0].Domain)
	assert.Equal(t, "required", se.Errors[0].Reason)
	assert.Equal(t, "Authorization", se.Errors[0].Location)
	assert.Equal(t, "header", se.Errors[0].LocationType)

	assert.Equal(t,
		"upload: server error 403: Message[Login Required] Location[Authorization - header] Reason[required] Domain[global]",
		se.Error(),
	)
}

func TestDefaultErrorDecoder_MalformedBodyFallsBack(t *testing.T) {
	se, err := defaultErrorDecoder(500, []byte("not json at all"))
	require.NoError(t, err)
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, "not json at all", se.Message)
	assert.Empty(t, se.Errors)
}
