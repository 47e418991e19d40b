package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"display name and angle brackets", `"Jane Doe" <jane@Example.COM>`, "example.com"},
		{"bare address", "jane@example.com", "example.com"},
		{"no at sign", "not-an-email", ""},
		{"empty domain", "jane@", ""},
		{"whitespace around domain", "jane@ example.com ", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.in))
		})
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.b.example.com", "example.com"},
		{"a.example.co.uk", "example.co.uk"},
		{"example.com", "example.com"},
		{"mail.example.com.au", "example.com.au"},
		{"example.ca", "example.ca"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseDomain(tt.in))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ARGENTA", DisplayName(`ARGENTA <digipass@tradebulls.in>`))
	assert.Equal(t, "Jane Doe", DisplayName(`"Jane Doe" <jane@example.com>`))
	assert.Equal(t, "", DisplayName("jane@example.com"))
}

func TestSenderEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", SenderEmail(`"Jane Doe" <jane@example.com>`))
	assert.Equal(t, "jane@example.com", SenderEmail("jane@example.com"))
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "john.smith", LocalPart("john.smith@gmail.com"))
}
