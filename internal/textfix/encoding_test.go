package textfix

import "testing"

// asLatin1 renders the UTF-8 bytes of s as if they had been decoded with
// ISO-8859-1, reproducing the mojibake the repair is meant to undo.
func asLatin1(s string) string {
	runes := make([]rune, 0, len(s))
	for _, b := range []byte(s) {
		runes = append(runes, rune(b))
	}
	return string(runes)
}

func TestRepairEncodingLatin1Mojibake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"double decoded accent", "CafÃ© del Mar", "Café del Mar"},
		{"double decoded cyrillic", asLatin1("Радио"), "Радио"},
		{"triple decoded accent", asLatin1(asLatin1("é")), "é"},
		{"triple decoded cyrillic", asLatin1(asLatin1("Радио")), "Радио"},
		{"clean ascii unchanged", "Smooth Jazz 24/7", "Smooth Jazz 24/7"},
		{"clean cyrillic unchanged", "Радио Маяк", "Радио Маяк"},
		{"whitespace collapsed", "Rock   FM\t\tLive", "Rock FM Live"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RepairEncoding(tt.in); got != tt.want {
				t.Errorf("RepairEncoding(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairEncodingSubstitutionTable(t *testing.T) {
	// Mixed corruption defeats the byte reinterpretation (the clean Cyrillic
	// tail is outside Latin-1), so the substitution table has to carry it.
	in := "Ð¿Ñ€Ð¸Ð²ÐµÑ‚ радио"
	want := "привет радио"
	if got := RepairEncoding(in); got != want {
		t.Errorf("RepairEncoding(%q) = %q, want %q", in, got, want)
	}
}

func TestRepairEncodingKeepsOriginalOnAmbiguity(t *testing.T) {
	// A lone Latin-1 supplement char reinterprets into invalid UTF-8 and must
	// survive untouched.
	in := "Única FM"
	if got := RepairEncoding(in); got != in {
		t.Errorf("RepairEncoding(%q) = %q, want input unchanged", in, got)
	}
}

func TestRepairEncodingStripsDisallowed(t *testing.T) {
	in := "Radio\x00 One​"
	if got := RepairEncoding(in); got != "Radio One" {
		t.Errorf("RepairEncoding(%q) = %q, want %q", in, got, "Radio One")
	}
}

func TestRepairEncodingIdempotent(t *testing.T) {
	inputs := []string{
		"CafÃ© del Mar",
		asLatin1("Радио Свобода"),
		asLatin1(asLatin1("é")),
		asLatin1(asLatin1("Радио Свобода")),
		"Ð¿Ñ€Ð¸Ð²ÐµÑ‚ радио",
		"Smooth Jazz 24/7",
		"Радио Маяк",
		"Única FM",
		"   spaced   out   ",
		"���broken���",
	}
	for _, in := range inputs {
		once := RepairEncoding(in)
		twice := RepairEncoding(once)
		if once != twice {
			t.Errorf("RepairEncoding not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
