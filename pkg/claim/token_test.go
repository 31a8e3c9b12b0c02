package claim

import (
	"testing"
	"time"
)

func TestIssueThenVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"))
	token, message, err := iss.Issue("0xAbC0000000000000000000000000000000000A", "tb1qexampleexampleexampleexampleexamplex", 102031, 120*time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if message == "" {
		t.Fatal("empty canonical message")
	}

	payload, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if payload.V != TokenVersion {
		t.Errorf("V = %d, want %d", payload.V, TokenVersion)
	}
	if payload.Exp-payload.Iat < 60 {
		t.Errorf("exp - iat = %d, want >= 60", payload.Exp-payload.Iat)
	}
	if CanonicalMessage(payload) != message {
		t.Error("re-composed canonical message does not match the one returned at issue time")
	}
}

func TestIssueFloorsShortTTL(t *testing.T) {
	iss := NewIssuer([]byte("secret"))
	token, message, err := iss.Issue("0xAbC0000000000000000000000000000000000A", "tb1qexample", 1, 5*time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if message == "" {
		t.Fatal("empty message")
	}
	payload, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if payload.Exp-payload.Iat != 60 {
		t.Errorf("exp - iat = %d, want 60", payload.Exp-payload.Iat)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	iss := NewIssuer([]byte("secret"))
	token, _, err := iss.Issue("0xAbC0000000000000000000000000000000000A", "tb1qexample", 1, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := token[:len(token)-1] + "x"
	if _, err := iss.Verify(tampered); err == nil {
		t.Fatal("want error for tampered token")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issA := NewIssuer([]byte("secret-a"))
	issB := NewIssuer([]byte("secret-b"))

	token, _, err := issA.Issue("0xAbC0000000000000000000000000000000000A", "tb1qexample", 1, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issB.Verify(token); err == nil {
		t.Fatal("want error for token signed with a different secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss := NewIssuer([]byte("secret"))
	restore := nowFunc
	nowFunc = func() time.Time { return time.Unix(1000, 0) }
	token, _, err := iss.Issue("0xAbC0000000000000000000000000000000000A", "tb1qexample", 1, time.Minute)
	nowFunc = restore
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	restore = nowFunc
	nowFunc = func() time.Time { return time.Unix(1000+3600, 0) }
	defer func() { nowFunc = restore }()

	if _, err := iss.Verify(token); err == nil {
		t.Fatal("want error for expired token")
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	iss := NewIssuer([]byte("secret"))
	if _, err := iss.Verify("not-a-token"); err == nil {
		t.Fatal("want error for malformed token")
	}
	if _, err := iss.Verify("###.###"); err == nil {
		t.Fatal("want error for malformed base64")
	}
}

func TestCanonicalMessageExactFormat(t *testing.T) {
	p := Payload{
		V:          1,
		Borrower:   "0xABC",
		BtcAddress: "tb1qxyz",
		Nonce:      "abcd1234",
		ChainID:    102031,
		Iat:        1000,
		Exp:        1120,
	}
	want := "HashCredit Borrower Claim\n" +
		"Borrower EVM: 0xABC\n" +
		"BTC Address: tb1qxyz\n" +
		"Nonce: abcd1234\n" +
		"Chain ID: 102031\n" +
		"Issued At: 1000\n" +
		"Expires At: 1120\n"
	if got := CanonicalMessage(p); got != want {
		t.Errorf("CanonicalMessage =\n%q\nwant\n%q", got, want)
	}
}
