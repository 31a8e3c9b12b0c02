package bitcoinwire

// ScriptType identifies a recognized scriptPubKey template.
type ScriptType string

const (
	ScriptTypeP2PKH  ScriptType = "p2pkh"
	ScriptTypeP2WPKH ScriptType = "p2wpkh"
)

// ExtractPubKeyHash pattern-matches a scriptPubKey against the two
// recognized templates and returns the embedded 20-byte pubkey hash. Any
// other template returns ok=false; the pipeline must reject such outputs.
func ExtractPubKeyHash(script []byte) (hash [20]byte, scriptType ScriptType, ok bool) {
	// P2PKH: OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG
	if len(script) == 25 &&
		script[0] == 0x76 && script[1] == 0xa9 && script[2] == 0x14 &&
		script[23] == 0x88 && script[24] == 0xac {
		copy(hash[:], script[3:23])
		return hash, ScriptTypeP2PKH, true
	}

	// P2WPKH: OP_0 <20>
	if len(script) == 22 && script[0] == 0x00 && script[1] == 0x14 {
		copy(hash[:], script[2:22])
		return hash, ScriptTypeP2WPKH, true
	}

	return hash, "", false
}
