package patternscan

import "testing"

func TestCompileAndFindFirst(t *testing.T) {
	p, err := Compile("48 8B ?? 00 C3")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", p.Len())
	}

	code := []byte{0x90, 0x90, 0x48, 0x8B, 0xAA, 0x00, 0xC3, 0x90}
	idx, ok := p.FindFirst(code, 0)
	if !ok || idx != 2 {
		t.Errorf("FindFirst = %d, %v, want 2, true", idx, ok)
	}
}

func TestFindFirstNoMatch(t *testing.T) {
	p, _ := Compile("DE AD BE EF")
	if _, ok := p.FindFirst([]byte{1, 2, 3}, 0); ok {
		t.Error("expected no match")
	}
}

func TestFindAllNonOverlapping(t *testing.T) {
	p, _ := Compile("AA ??")
	code := []byte{0xAA, 0x01, 0xAA, 0x02, 0xAA, 0x03}
	got := p.FindAll(code, 0)
	want := []int{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestCompileRejectsInvalidToken(t *testing.T) {
	if _, err := Compile("48 ZZ"); err == nil {
		t.Fatal("expected a ParseError for an invalid token")
	}
}

func TestCompileRejectsEmptyPattern(t *testing.T) {
	if _, err := Compile("   "); err == nil {
		t.Fatal("expected an error for an empty pattern")
	}
}
