package txid

import "testing"

func TestForBytesIsStable(t *testing.T) {
	id, err := ForBytes([]byte("hello"))
	if err != nil {
		t.Fatalf("ForBytes: %v", err)
	}
	if id.String() != StringForBytes([]byte("hello")) {
		t.Fatalf("ForBytes and StringForBytes disagree")
	}
	if StringForBytes([]byte("hello")) == StringForBytes([]byte("hellp")) {
		t.Fatalf("distinct payloads collided")
	}
	// CIDv1, raw codec, base32 lower multibase
	if s := id.String(); len(s) == 0 || s[0] != 'b' {
		t.Fatalf("unexpected identifier form %q", id)
	}
}

func TestParseLinear(t *testing.T) {
	id := NewLinear()
	parsed, err := ParseLinear(id.String())
	if err != nil {
		t.Fatalf("ParseLinear: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip drifted: %s vs %s", parsed, id)
	}
	if _, err := ParseLinear("not-a-uuid"); err == nil {
		t.Fatalf("malformed identifier accepted")
	}
}
