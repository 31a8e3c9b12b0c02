package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck

	"github.com/hashcredit/spvbridge/pkg/bitcoinwire"
	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/claim"
)

func newTestServer(t *testing.T, apiKey string) (*Server, *chainadapter.Mock) {
	t.Helper()
	mock := chainadapter.NewMock()
	srv, err := New(Config{
		Adapter: mock,
		Issuer:  claim.NewIssuer([]byte("test-secret")),
		APIKey:  apiKey,
		// httptest servers listen on 127.0.0.1.
		Loopback: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, mock
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, "secret-key")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRouteRejectsMissingAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, "secret-key")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/spv/build-proof", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("POST /spv/build-proof: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestNewRefusesNonLoopbackWithoutAPIKey(t *testing.T) {
	if _, err := New(Config{Loopback: false, APIKey: ""}); err != errAPIKeyRequired {
		t.Fatalf("New: got %v, want errAPIKeyRequired", err)
	}
}

// buildP2WPKHTx mirrors pkg/spvproof's test helper of the same shape: a
// minimal legacy-wire-format tx with one P2WPKH output.
func buildP2WPKHTx(valueSats uint64, pubKeyHash [20]byte) []byte {
	var buf []byte
	buf = append(buf, 0x01, 0x00, 0x00, 0x00)
	buf = append(buf, 0x01)
	buf = append(buf, make([]byte, 36)...)
	buf = append(buf, 0x00)
	buf = append(buf, 0xff, 0xff, 0xff, 0xff)

	buf = append(buf, 0x01)
	valBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(valBytes, valueSats)
	buf = append(buf, valBytes...)

	script := append([]byte{0x00, 0x14}, pubKeyHash[:]...)
	buf = append(buf, byte(len(script)))
	buf = append(buf, script...)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // locktime
	return buf
}

func buildHeader(prevHash, merkleRoot bitcoinwire.InternalHash, timestamp uint32) []byte {
	h := bitcoinwire.BlockHeader{Version: 1, PrevHash: prevHash, MerkleRoot: merkleRoot, Timestamp: timestamp, Bits: 0x1d00ffff}
	return h.Serialize()
}

func seedSyntheticChain(t *testing.T, m *chainadapter.Mock, checkpoint, tip, txHeight uint32, rawTx []byte) bitcoinwire.DisplayHash {
	t.Helper()
	leaf := bitcoinwire.Sha256d(rawTx)
	txidDisplay := leaf.Reverse()

	var prevHash bitcoinwire.InternalHash
	for height := checkpoint + 1; height <= tip; height++ {
		merkleRoot := bitcoinwire.Sha256d([]byte{byte(height), byte(height >> 8)})
		if height == txHeight {
			merkleRoot = leaf
		}
		headerBytes := buildHeader(prevHash, merkleRoot, 1700000000+height)
		header, err := bitcoinwire.ParseHeader(headerBytes)
		if err != nil {
			t.Fatalf("ParseHeader: %v", err)
		}
		blockHash := header.Hash().Reverse()

		var txids []bitcoinwire.DisplayHash
		if height == txHeight {
			txids = []bitcoinwire.DisplayHash{txidDisplay}
		}
		m.PutBlock(height, blockHash, headerBytes, chainadapter.HeaderInfo{Time: header.Timestamp, Bits: header.Bits}, txids)
		prevHash = header.Hash()
	}
	m.PutRawTx(txidDisplay, rawTx)
	return txidDisplay
}

func TestHandleBuildProofOverMockAdapter(t *testing.T) {
	srv, mock := newTestServer(t, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var pubKeyHash [20]byte
	copy(pubKeyHash[:], []byte{0x12, 0x34})
	rawTx := buildP2WPKHTx(100000, pubKeyHash)

	const checkpoint, target, tip = 800000, 800006, 800011
	txid := seedSyntheticChain(t, mock, checkpoint, tip, target, rawTx)

	body, _ := json.Marshal(map[string]interface{}{
		"txid_display":      txid.String(),
		"output_index":      0,
		"checkpoint_height": checkpoint,
		"target_height":     target,
		"tip_height":        tip,
		"borrower":          "0x000000000000000000000000000000000000000A",
	})

	resp, err := http.Post(ts.URL+"/spv/build-proof", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /spv/build-proof: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out buildProofResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.HeaderCount != 11 {
		t.Errorf("header_count = %d, want 11", out.HeaderCount)
	}
	if out.AmountSats != 100000 {
		t.Errorf("amount_sats = %d, want 100000", out.AmountSats)
	}
	if out.ScriptType != "p2wpkh" {
		t.Errorf("script_type = %q, want p2wpkh", out.ScriptType)
	}
	if out.ProofHex == "" {
		t.Error("expected nonempty proof_hex")
	}
}

func TestHandleClaimStartThenCompleteDryRunOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	evmKey, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	borrowerAddr := ethcrypto.PubkeyToAddress(evmKey.PublicKey)

	btcKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubKeyHash := hash160Compact(btcKey.PubKey().SerializeCompressed())
	btcAddress := encodeTestnetP2WPKH(t, pubKeyHash)

	startBody, _ := json.Marshal(map[string]interface{}{
		"borrower":    borrowerAddr.Hex(),
		"btc_address": btcAddress,
		"chain_id":    102031,
		"ttl_seconds": 120,
	})
	resp, err := http.Post(ts.URL+"/claim/start", "application/json", bytes.NewReader(startBody))
	if err != nil {
		t.Fatalf("POST /claim/start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var started claimStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	prefixed := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(started.Message)) + started.Message
	evmHash := ethcrypto.Keccak256([]byte(prefixed))
	evmSig, err := ethcrypto.Sign(evmHash, evmKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	btcHash := bip137MessageHash(started.Message)
	compact, err := ecdsa.SignCompact(btcKey, btcHash[:], true)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	recID := int(compact[0]-31) % 4
	btcSig := make([]byte, 65)
	btcSig[0] = byte(39 + recID)
	copy(btcSig[1:], compact[1:])

	completeBody, _ := json.Marshal(map[string]interface{}{
		"token":         started.Token,
		"evm_signature": base64StdEncode(evmSig),
		"btc_signature": base64StdEncode(btcSig),
		"dry_run":       true,
	})
	resp2, err := http.Post(ts.URL+"/claim/complete", "application/json", bytes.NewReader(completeBody))
	if err != nil {
		t.Fatalf("POST /claim/complete: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}
	var completed claimCompleteResponse
	if err := json.NewDecoder(resp2.Body).Decode(&completed); err != nil {
		t.Fatalf("decode complete response: %v", err)
	}
	if completed.Registered {
		t.Error("dry run should never report Registered")
	}
	if completed.PubKeyHashHex == "" {
		t.Error("expected nonempty pubkey_hash_hex")
	}
}

func hash160Compact(b []byte) [20]byte {
	sh := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sh[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

func encodeTestnetP2WPKH(t *testing.T, pubKeyHash [20]byte) string {
	t.Helper()
	prog5, err := bech32.ConvertBits(pubKeyHash[:], 8, 5, true)
	if err != nil {
		t.Fatalf("ConvertBits: %v", err)
	}
	data := append([]byte{0}, prog5...)
	addr, err := bech32.Encode("tb", data)
	if err != nil {
		t.Fatalf("bech32.Encode: %v", err)
	}
	return addr
}

// bip137MessageHash mirrors pkg/btcsig's unexported digest so this test
// can sign a message the way a wallet would.
func bip137MessageHash(message string) [32]byte {
	const magicPrefix = "\x18Bitcoin Signed Message:\n"
	msg := []byte(message)
	buf := append([]byte(magicPrefix), byte(len(msg)))
	buf = append(buf, msg...)
	first := sha256.Sum256(buf)
	return sha256.Sum256(first[:])
}

func base64StdEncode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
