package common

import (
	"encoding/hex"
	"testing"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeRandHexString_EntropyHint(t *testing.T) {
	const n = 32
	a, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Logf("warning: two MakeRandHexString(%d) results are identical; extremely unlikely", n)
	}
}

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

// ---------- EmailLocalPart / SameEmail ----------

func TestEmailLocalPart(t *testing.T) {
	cases := map[string]string{
		"ana@example.com":   "ana",
		"  bob@x.io ":       "bob",
		"no-at-sign":        "no-at-sign",
		"":                  "",
		"@leading.example":  "",
		"a.b+tag@host.test": "a.b+tag",
	}
	for in, want := range cases {
		if got := EmailLocalPart(in); got != want {
			t.Fatalf("EmailLocalPart(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSameEmail(t *testing.T) {
	if !SameEmail("Admin@Example.com", " admin@example.com ") {
		t.Fatal("expected case-insensitive match")
	}
	if SameEmail("a@x.com", "b@x.com") {
		t.Fatal("different addresses must not match")
	}
	if SameEmail("", "") {
		t.Fatal("empty addresses must not match")
	}
}
