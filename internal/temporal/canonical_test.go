package temporal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizePayload_SortsKeys(t *testing.T) {
	got, err := CanonicalizePayload(json.RawMessage(`{"b": 2, "a": 1, "c": {"z": true, "y": false}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":{"y":false,"z":true}}`, string(got))
}

func TestCanonicalizePayload_Idempotent(t *testing.T) {
	once, err := CanonicalizePayload(json.RawMessage(`{"status": "shipped", "qty": 3}`))
	require.NoError(t, err)

	twice, err := CanonicalizePayload(once)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
}

func TestCanonicalizePayload_PreservesNumbers(t *testing.T) {
	got, err := CanonicalizePayload(json.RawMessage(`{"price": 10.50, "big": 9007199254740993}`))
	require.NoError(t, err)
	// json.Number round-trips literals verbatim: no float precision loss.
	assert.Equal(t, `{"big":9007199254740993,"price":10.50}`, string(got))
}

func TestCanonicalizePayload_NoHTMLEscaping(t *testing.T) {
	got, err := CanonicalizePayload(json.RawMessage(`{"name": "<b>산지직송</b> & co"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"<b>산지직송</b> & co"}`, string(got))
}

func TestCanonicalizePayload_NFCNormalization(t *testing.T) {
	// "é" as NFD (e + combining acute) must normalize to the NFC form.
	nfd := `{"name": "café"}`
	nfc := `{"name": "café"}`

	gotNFD, err := CanonicalizePayload(json.RawMessage(nfd))
	require.NoError(t, err)
	gotNFC, err := CanonicalizePayload(json.RawMessage(nfc))
	require.NoError(t, err)
	assert.Equal(t, string(gotNFC), string(gotNFD))
}

func TestCanonicalizePayload_ScalarsAndArrays(t *testing.T) {
	got, err := CanonicalizePayload(json.RawMessage(`[1, "two", null, true]`))
	require.NoError(t, err)
	assert.Equal(t, `[1,"two",null,true]`, string(got))
}

func TestCanonicalizePayload_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace only", "  \n"},
		{"invalid JSON", `{"a":`},
		{"trailing data", `{"a":1} garbage`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CanonicalizePayload(json.RawMessage(tt.in))
			assert.Error(t, err)
		})
	}
}
