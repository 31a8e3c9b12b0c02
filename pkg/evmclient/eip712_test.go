package evmclient

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

func TestSignPayoutClaimRecoversToSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	c := &Client{
		chainID:    big.NewInt(102031),
		privateKey: key,
		fromAddr:   signerAddr,
	}

	var txid [32]byte
	txid[0] = 0xab
	verifyingContract := crypto.PubkeyToAddress(key.PublicKey) // any address works
	claim := PayoutClaim{
		Borrower:       signerAddr,
		Txid:           txid,
		Vout:           1,
		AmountSats:     100000,
		BlockHeight:    800006,
		BlockTimestamp: 1700000000,
		Deadline:       big.NewInt(1900000000),
	}

	sig, err := c.SignPayoutClaim(claim, verifyingContract)
	if err != nil {
		t.Fatalf("SignPayoutClaim: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("len(sig) = %d, want 65", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("v = %d, want 27 or 28", sig[64])
	}

	hash, _, err := apitypes.TypedDataAndHash(payoutClaimTypedData(c.chainID, verifyingContract, claim))
	if err != nil {
		t.Fatalf("TypedDataAndHash: %v", err)
	}
	recovery := make([]byte, 65)
	copy(recovery, sig)
	recovery[64] -= 27
	pub, err := crypto.SigToPub(hash, recovery)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != signerAddr {
		t.Errorf("recovered %s, want %s", crypto.PubkeyToAddress(*pub), signerAddr)
	}
}

func TestSignPayoutClaimRequiresDeadline(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c := &Client{chainID: big.NewInt(1), privateKey: key}

	if _, err := c.SignPayoutClaim(PayoutClaim{}, crypto.PubkeyToAddress(key.PublicKey)); err == nil {
		t.Fatal("want error for missing deadline")
	}
}
