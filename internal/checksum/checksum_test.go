package checksum

import "testing"

func TestSum(t *testing.T) {
	got := Sum([]byte("hello"))
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("Sum = %q, want %q", got, want)
	}
}

func TestSalted(t *testing.T) {
	a := Salted("salt", "card-1")
	if a < 0 || a >= 1 {
		t.Fatalf("Salted = %v, want value in [0,1)", a)
	}
	if b := Salted("salt", "card-1"); a != b {
		t.Errorf("Salted not stable: %v != %v", a, b)
	}
	if c := Salted("other", "card-1"); a == c {
		t.Errorf("Salted ignores salt: %v", c)
	}
}
