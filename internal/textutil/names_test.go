package textutil

import "testing"

func TestSanitizeNamePart(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme", "Acme"},
		{"whitespace", "  Acme   Corp  ", "Acme_Corp"},
		{"illegal characters", `In/voi:ce *2024?`, "Invoice_2024"},
		{"underscore runs", "a___b", "a_b"},
		{"leading trailing underscores", "_Acme_", "Acme"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeNamePart(tc.in); got != tc.want {
				t.Fatalf("SanitizeNamePart(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuildBaseName(t *testing.T) {
	if got := BuildBaseName("Acme Corp", "Invoice March", 50); got != "Acme_Corp_Invoice_March" {
		t.Fatalf("unexpected base name %q", got)
	}
	if got := BuildBaseName("", "", 50); got != "Unknown_Document" {
		t.Fatalf("fallback base name = %q, want Unknown_Document", got)
	}
}

func TestBuildBaseNameCapsLength(t *testing.T) {
	got := BuildBaseName("Averylongcompanyname", "An even longer content summary", 20)
	if len([]rune(got)) > 20 {
		t.Fatalf("base name %q exceeds 20 runes", got)
	}
	if got[len(got)-1] == '_' {
		t.Fatalf("base name %q ends with underscore after truncation", got)
	}
}

func TestUniqueName(t *testing.T) {
	existing := []string{"Acme_Invoice.pdf", "Acme_Invoice_1.pdf", "other.pdf"}
	if got := UniqueName("Acme_Invoice", existing); got != "Acme_Invoice_2.pdf" {
		t.Fatalf("UniqueName = %q, want Acme_Invoice_2.pdf", got)
	}
	if got := UniqueName("Fresh_Name", existing); got != "Fresh_Name.pdf" {
		t.Fatalf("UniqueName = %q, want Fresh_Name.pdf", got)
	}
}

func TestSplitRenamed(t *testing.T) {
	company, summary := SplitRenamed("Acme_Invoice_March.pdf")
	if company != "Acme" || summary != "Invoice_March" {
		t.Fatalf("SplitRenamed = %q, %q", company, summary)
	}
	company, summary = SplitRenamed("Solo.pdf")
	if company != "Solo" || summary != "Document" {
		t.Fatalf("SplitRenamed without underscore = %q, %q", company, summary)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 3); got != "hel" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("Truncate should leave short strings alone, got %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Fatalf("Truncate with max 0 should be a no-op, got %q", got)
	}
}
