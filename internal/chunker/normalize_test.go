package chunker

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
		{"trims ends", "  hello world  ", "hello world"},
		{"collapses runs", "a \n\n\t b", "a b"},
		{"non-breaking space", "a\u00a0\u00a0b", "a b"},
		{"narrow no-break space", "a\u202fb", "a b"},
		{"unchanged", "already clean", "already clean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "First line.\n\nSecond   paragraph here.\r\n"
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Errorf("Normalize not idempotent: %q then %q", once, twice)
	}
}
