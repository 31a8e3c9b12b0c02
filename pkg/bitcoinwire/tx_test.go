package bitcoinwire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildLegacyTx builds a minimal pre-segwit transaction with one input and
// the given outputs, for test purposes only.
func buildLegacyTx(outputs []TxOutput) []byte {
	var buf bytes.Buffer
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], 2)
	buf.Write(version[:])

	buf.Write(EncodeVarInt(1)) // 1 input
	buf.Write(make([]byte, 32))
	buf.Write([]byte{0, 0, 0, 0}) // prevout index
	buf.Write(EncodeVarInt(0))    // empty scriptSig
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	buf.Write(EncodeVarInt(uint64(len(outputs))))
	for _, o := range outputs {
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], o.ValueSats)
		buf.Write(val[:])
		buf.Write(EncodeVarInt(uint64(len(o.ScriptPubKey))))
		buf.Write(o.ScriptPubKey)
	}

	buf.Write([]byte{0, 0, 0, 0}) // locktime
	return buf.Bytes()
}

func buildSegwitTx(outputs []TxOutput) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{2, 0, 0, 0})
	buf.Write([]byte{segwitMarker, segwitFlag})

	buf.Write(EncodeVarInt(1))
	buf.Write(make([]byte, 32))
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(EncodeVarInt(0))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	buf.Write(EncodeVarInt(uint64(len(outputs))))
	for _, o := range outputs {
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], o.ValueSats)
		buf.Write(val[:])
		buf.Write(EncodeVarInt(uint64(len(o.ScriptPubKey))))
		buf.Write(o.ScriptPubKey)
	}

	buf.Write(EncodeVarInt(0)) // witness stack, empty
	buf.Write([]byte{0, 0, 0, 0})
	return buf.Bytes()
}

func TestParseTxOutputsLegacy(t *testing.T) {
	want := []TxOutput{
		{ValueSats: 100000, ScriptPubKey: []byte{0x76, 0xa9, 0x14}},
		{ValueSats: 5000, ScriptPubKey: []byte{0x00, 0x14}},
	}
	raw := buildLegacyTx(want)

	got, err := ParseTxOutputs(raw)
	if err != nil {
		t.Fatalf("ParseTxOutputs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d outputs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ValueSats != want[i].ValueSats || !bytes.Equal(got[i].ScriptPubKey, want[i].ScriptPubKey) {
			t.Errorf("output %d mismatch: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseTxOutputsSegwit(t *testing.T) {
	want := []TxOutput{{ValueSats: 100000, ScriptPubKey: []byte{0x00, 0x14}}}
	raw := buildSegwitTx(want)

	got, err := ParseTxOutputs(raw)
	if err != nil {
		t.Fatalf("ParseTxOutputs: %v", err)
	}
	if len(got) != 1 || got[0].ValueSats != 100000 {
		t.Errorf("segwit parse mismatch: %+v", got)
	}
}

func TestParseTxOutputsTruncated(t *testing.T) {
	raw := buildLegacyTx([]TxOutput{{ValueSats: 1, ScriptPubKey: []byte{1, 2, 3}}})
	if _, err := ParseTxOutputs(raw[:len(raw)-2]); err == nil {
		t.Errorf("expected error for truncated transaction")
	}
}
