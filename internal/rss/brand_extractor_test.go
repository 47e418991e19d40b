package rss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBrands(t *testing.T) {
	cases := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "english appear to come from",
			title: "Phishing e-mails appear to come from Argenta and are asking for your PIN",
			want:  []string{"argenta"},
		},
		{
			name:  "dutch in naam van",
			title: "Valse e-mails in naam van KBC: klik niet op de link",
			want:  []string{"kbc"},
		},
		{
			name:  "dutch namens",
			title: "Phishing namens de Federale Overheidsdienst Financien is terug",
			want:  []string{"federale overheidsdienst financien"},
		},
		{
			name:  "english in the name of",
			title: "New phishing wave in the name of the Belgian tax administration has started",
			want:  []string{"belgian tax administration"},
		},
		{
			name:  "conjunction split",
			title: "Phishing mails appear to come from Proximus and Telenet",
			want:  []string{"proximus", "telenet"},
		},
		{
			name:  "no match",
			title: "General phishing awareness tips for this week",
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractBrands(tc.title)
			assert.Equal(t, tc.want, got)
		})
	}
}
