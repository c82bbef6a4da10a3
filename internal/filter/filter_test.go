package filter

import "testing"

func TestRedact_BasicAndEvasion(t *testing.T) {
	f := New(DefaultWords)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain word", "oh shit", "oh ****"},
		{"leet substitution", "oh sh1t", "oh ****"},
		{"separator insertion", "f*ck no wait f_u_c_k", "f*ck no wait *******"},
		{"elongation", "fuuuuck", "*******"},
		{"zero-width evasion", "f​uck", "****"},
		{"embedded in larger word is kept", "classic assessment", "classic assessment"},
		{"multi-word phrase", "just kill  yourself already", "just ************** already"},
		{"clean text untouched", "hello world", "hello world"},
		{"mixed case", "BullShit", "********"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedact_CustomWordList(t *testing.T) {
	f := New([]string{"banana"})

	if got := f.Redact("i love BANANA bread"); got != "i love ****** bread" {
		t.Errorf("unexpected redaction: %q", got)
	}
	// Built-in list not active when a custom list is supplied.
	if got := f.Redact("oh shit"); got != "oh shit" {
		t.Errorf("expected custom list only, got %q", got)
	}
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"check https://example.com/page out", "https://example.com/page"},
		{"http://a.io", "http://a.io"},
		{"no links here", ""},
		{"HTTPS://UPPER.example", "HTTPS://UPPER.example"},
	}

	for _, tt := range tests {
		if got := ExtractURL(tt.in); got != tt.want {
			t.Errorf("ExtractURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
