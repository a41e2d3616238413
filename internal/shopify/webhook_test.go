package shopify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":123456789}`)
	secret := "shh"
	good := Sign(body, secret)

	tests := []struct {
		Title     string
		Body      []byte
		Signature string
		Secret    string
		Valid     bool
	}{
		{Title: "valid signature", Body: body, Signature: good, Secret: secret, Valid: true},
		{Title: "tampered body", Body: []byte(`{"id":987654321}`), Signature: good, Secret: secret},
		{Title: "wrong secret", Body: body, Signature: good, Secret: "other"},
		{Title: "missing signature", Body: body, Secret: secret},
		{Title: "no secret accepts anything", Body: []byte("whatever"), Signature: "garbage", Valid: true},
		{Title: "no secret accepts empty signature", Body: body, Valid: true},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			err := VerifyWebhook(tt.Body, tt.Signature, tt.Secret)
			if tt.Valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSignature)
			}
		})
	}
}

func TestSign_KnownVector(t *testing.T) {
	// echo -n 'hello' | openssl dgst -sha256 -hmac key -binary | base64
	assert.Equal(t, "kwezuRXvtRcf8U2MtV+8x5jGwO8UVtZt7RpqpyOli3s=", Sign([]byte("hello"), "key"))
}
