package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/destination"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want Message
	}{
		{`{"type":"READY"}`, Ready{}},
		{`{"type":"TOKEN_EXTRACTED","payload":{"token":"abc"}}`, TokenExtracted{Token: "abc"}},
		{`{"type":"NOT_READY","payload":{"reason":"challenge pending"}}`, NotReady{Reason: "challenge pending"}},
		{`{"type":"POLLING","payload":{"count":3,"max":60}}`, Polling{Count: 3, Max: 60}},
		{`{"type":"TIMEOUT"}`, Timeout{}},
		{`{"type":"FIELD_RESULT","payload":{"field":"passportNo","filled":true,"heuristic":"placeholder"}}`,
			FieldResult{Field: "passportNo", Filled: true, Heuristic: destination.SelectorPlaceholder}},
		{`{"type":"SUBMISSION_COMPLETE","payload":{"arrCardNo":"A1","qrUri":"qr","pdfPath":"a.pdf"}}`,
			SubmissionComplete{ArrCardNo: "A1", QRURI: "qr", PDFPath: "a.pdf"}},
		{`{"type":"SUBMISSION_FAILED","payload":{"reason":"captcha"}}`, SubmissionFailed{Reason: "captcha"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.want.Type()), func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"NAVIGATE","payload":{}}`,
		`{"type":"POLLING","payload":{"count":"three"}}`,
	} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	for _, m := range []Message{Ready{}, TokenExtracted{Token: "t"}, Polling{Count: 1, Max: 2}} {
		raw, err := Encode(m)
		require.NoError(t, err)
		back, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
}
