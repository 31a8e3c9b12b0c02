// Package claim implements the dual-signature borrower claim protocol:
// a stateless HMAC-authenticated token binds an EVM address, a BTC
// address, and a nonce; completion requires both a
// BIP-137 Bitcoin signature and an EVM personal-sign signature over the
// same canonical message before the binding is registered on-chain.
package claim

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TokenVersion is the only accepted ClaimPayload version.
const TokenVersion = 1

// minTTL is the floor applied to a caller-requested TTL.
const minTTL = 60 * time.Second

// clockSkew bounds how far into the future iat may claim to be.
const clockSkew = 60 * time.Second

var (
	ErrMalformedToken = errors.New("claim: malformed token")
	ErrBadSignature   = errors.New("claim: token signature mismatch")
	ErrExpired        = errors.New("claim: token expired")
	ErrNotYetIssued   = errors.New("claim: token issued too far in the future")
	ErrUnknownVersion = errors.New("claim: unsupported token version")
	ErrInvalidAddress = errors.New("claim: invalid address")
)

// Payload is the claim token's signed body. Field order here controls
// nothing (the wire form re-marshals with sorted keys), but json tags
// fix the exact key names the canonical message and the HMAC both bind.
type Payload struct {
	V          int    `json:"v"`
	Borrower   string `json:"borrower"`
	BtcAddress string `json:"btc_address"`
	Nonce      string `json:"nonce"`
	ChainID    int64  `json:"chain_id"`
	Iat        int64  `json:"iat"`
	Exp        int64  `json:"exp"`
}

// canonicalJSON re-marshals p with sorted keys and no extraneous
// whitespace. json.Marshal emits fields in declaration order, so the
// anonymous struct here declares them alphabetically to pin the key
// order independently of Payload's layout.
func canonicalJSON(p Payload) ([]byte, error) {
	ordered := struct {
		Borrower   string `json:"borrower"`
		BtcAddress string `json:"btc_address"`
		ChainID    int64  `json:"chain_id"`
		Exp        int64  `json:"exp"`
		Iat        int64  `json:"iat"`
		Nonce      string `json:"nonce"`
		V          int    `json:"v"`
	}{p.Borrower, p.BtcAddress, p.ChainID, p.Exp, p.Iat, p.Nonce, p.V}
	return json.Marshal(ordered)
}

// CanonicalMessage composes the exact UTF-8 byte string both signatures
// sign.
func CanonicalMessage(p Payload) string {
	var b strings.Builder
	b.WriteString("HashCredit Borrower Claim\n")
	fmt.Fprintf(&b, "Borrower EVM: %s\n", p.Borrower)
	fmt.Fprintf(&b, "BTC Address: %s\n", p.BtcAddress)
	fmt.Fprintf(&b, "Nonce: %s\n", p.Nonce)
	fmt.Fprintf(&b, "Chain ID: %d\n", p.ChainID)
	fmt.Fprintf(&b, "Issued At: %d\n", p.Iat)
	fmt.Fprintf(&b, "Expires At: %d\n", p.Exp)
	return b.String()
}

// Issuer issues and verifies claim tokens with a fixed HMAC secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an Issuer keyed by secret. The secret is never
// logged or otherwise exposed.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

// Issue builds a ClaimPayload for (borrower, btcAddress, chainID), signs
// it, and returns the wire token plus the canonical message to be signed
// by both keys.
func (iss *Issuer) Issue(borrower, btcAddress string, chainID int64, ttl time.Duration) (token string, message string, err error) {
	if ttl < minTTL {
		ttl = minTTL
	}
	nonce, err := randomNonce()
	if err != nil {
		return "", "", fmt.Errorf("claim: generate nonce: %w", err)
	}

	iat := nowFunc().Unix()
	payload := Payload{
		V:          TokenVersion,
		Borrower:   borrower,
		BtcAddress: btcAddress,
		Nonce:      nonce,
		ChainID:    chainID,
		Iat:        iat,
		Exp:        iat + int64(ttl.Seconds()),
	}

	token, err = iss.encode(payload)
	if err != nil {
		return "", "", err
	}
	return token, CanonicalMessage(payload), nil
}

func (iss *Issuer) encode(payload Payload) (string, error) {
	body, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("claim: marshal payload: %w", err)
	}
	mac := hmac.New(sha256.New, iss.secret)
	mac.Write(body)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(body) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify splits token, checks the HMAC in constant time, and validates
// the payload's time bounds and version. It does not check signatures
// over the canonical message; that is the caller's job via pkg/btcsig
// and an EVM recover helper.
func (iss *Issuer) Verify(token string) (Payload, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return Payload{}, ErrMalformedToken
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	mac := hmac.New(sha256.New, iss.secret)
	mac.Write(body)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return Payload{}, ErrBadSignature
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if payload.V != TokenVersion {
		return Payload{}, ErrUnknownVersion
	}

	now := nowFunc()
	if payload.Exp < now.Unix() {
		return Payload{}, ErrExpired
	}
	if payload.Iat > now.Add(clockSkew).Unix() {
		return Payload{}, ErrNotYetIssued
	}

	return payload, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
