package i18n

import "testing"

func TestFromAcceptLanguage(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", "English"},
		{"es-AR,es;q=0.9,en;q=0.8", "Spanish"},
		{"pt-BR", "Portuguese"},
		{"en-US,en;q=0.5", "English"},
		{"DE", "German"},
		{"xx-YY", "English"},
		{"fr;q=0.7", "French"},
	}

	for _, c := range cases {
		if got := FromAcceptLanguage(c.header); got != c.want {
			t.Errorf("FromAcceptLanguage(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}
