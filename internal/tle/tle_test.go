package tle

import (
	"errors"
	"testing"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func validTLE() string {
	return issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
}

func TestParseValidGroup(t *testing.T) {
	set, err := Parse(validTLE())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d elements, want 1", len(set))
	}

	el := set[0]
	if el.Name != issName {
		t.Errorf("Name = %q, want %q", el.Name, issName)
	}
	if el.NoradID != 25544 {
		t.Errorf("NoradID = %d, want 25544", el.NoradID)
	}
	if el.Line1 != issLine1 || el.Line2 != issLine2 {
		t.Error("element lines do not match input")
	}
}

func TestParseSkipsInvalidGroups(t *testing.T) {
	raw := "BROKEN SAT\nthis is not an element line\nneither is this\n" + validTLE()

	set, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d elements, want 1 (invalid group skipped)", len(set))
	}
	if set[0].Name != issName {
		t.Errorf("surviving element = %q, want %q", set[0].Name, issName)
	}
}

func TestParseToleratesCRLFAndBlankLines(t *testing.T) {
	raw := "\n" + issName + "\r\n" + issLine1 + "\r\n" + issLine2 + "\r\n\n"

	set, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d elements, want 1", len(set))
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, ErrNoElements) {
		t.Errorf("Parse(\"\") error = %v, want ErrNoElements", err)
	}
}

func TestParseAllGroupsInvalid(t *testing.T) {
	_, err := Parse("A\nB\nC\nD\nE\nF\n")
	if !errors.Is(err, ErrNoElements) {
		t.Errorf("error = %v, want ErrNoElements", err)
	}
}

func TestByName(t *testing.T) {
	set, err := Parse(validTLE())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, ok := set.ByName(issName); !ok {
		t.Errorf("ByName(%q) not found", issName)
	}
	if _, ok := set.ByName("NOAA-15"); ok {
		t.Error("ByName should miss for an absent name")
	}
}
