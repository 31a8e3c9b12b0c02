package bitcoinwire

import (
	"encoding/hex"
	"testing"
)

func TestSha256dReferenceVectors(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"},
		{"test", "954d5a49fd70d9b8bcdb35d252267829957f7ef7fa6c74f88419bdc5e82209f4"},
	}

	for _, c := range cases {
		got := Sha256d([]byte(c.input))
		want, err := hex.DecodeString(c.want)
		if err != nil {
			t.Fatalf("bad test vector: %v", err)
		}
		if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
			t.Errorf("sha256d(%q) = %x, want %x", c.input, got, want)
		}
	}
}

func TestHashReverseRoundTrip(t *testing.T) {
	var h InternalHash
	for i := range h {
		h[i] = byte(i)
	}

	if h.Reverse().Reverse() != h {
		t.Errorf("reverse(reverse(x)) != x")
	}
}
