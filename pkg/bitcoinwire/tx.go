package bitcoinwire

import (
	"encoding/binary"
	"fmt"
)

// TxOutput is a single transaction output: the amount in satoshis and the
// raw scriptPubKey bytes.
type TxOutput struct {
	ValueSats    uint64
	ScriptPubKey []byte
}

const (
	outpointSize = 36 // 32-byte prevTxid + 4-byte index
	sequenceSize = 4
	segwitMarker = 0x00
	segwitFlag   = 0x01
)

// ParseTxOutputs walks a raw transaction's wire bytes far enough to
// enumerate its outputs, without attempting full transaction decode.
// It handles both pre-segwit and segwit wire formats: version (4B), an
// optional segwit marker+flag (0x00 0x01), variable-length inputs
// (36B outpoint, varint script, 4B sequence), then outputs (8B value,
// varint script). Witness data trailing the outputs is ignored, but at
// least the 4-byte locktime must follow the last output.
func ParseTxOutputs(raw []byte) ([]TxOutput, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: transaction shorter than version field", ErrMalformedTransaction)
	}

	pos := 4 // skip nVersion

	if len(raw) >= pos+2 && raw[pos] == segwitMarker && raw[pos+1] == segwitFlag {
		pos += 2
	}

	numInputs, n, err := DecodeVarInt(raw[pos:])
	if err != nil {
		return nil, fmt.Errorf("%w: input count: %v", ErrMalformedTransaction, err)
	}
	pos += n

	for i := uint64(0); i < numInputs; i++ {
		if len(raw) < pos+outpointSize {
			return nil, fmt.Errorf("%w: truncated input outpoint", ErrMalformedTransaction)
		}
		pos += outpointSize

		scriptLen, n, err := DecodeVarInt(raw[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: input script length: %v", ErrMalformedTransaction, err)
		}
		pos += n

		if len(raw) < pos+int(scriptLen) {
			return nil, fmt.Errorf("%w: truncated input script", ErrMalformedTransaction)
		}
		pos += int(scriptLen)

		if len(raw) < pos+sequenceSize {
			return nil, fmt.Errorf("%w: truncated input sequence", ErrMalformedTransaction)
		}
		pos += sequenceSize
	}

	numOutputs, n, err := DecodeVarInt(raw[pos:])
	if err != nil {
		return nil, fmt.Errorf("%w: output count: %v", ErrMalformedTransaction, err)
	}
	pos += n

	outputs := make([]TxOutput, 0, numOutputs)
	for i := uint64(0); i < numOutputs; i++ {
		if len(raw) < pos+8 {
			return nil, fmt.Errorf("%w: truncated output value", ErrMalformedTransaction)
		}
		value := binary.LittleEndian.Uint64(raw[pos : pos+8])
		pos += 8

		scriptLen, n, err := DecodeVarInt(raw[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: output script length: %v", ErrMalformedTransaction, err)
		}
		pos += n

		if len(raw) < pos+int(scriptLen) {
			return nil, fmt.Errorf("%w: truncated output script", ErrMalformedTransaction)
		}
		script := make([]byte, scriptLen)
		copy(script, raw[pos:pos+int(scriptLen)])
		pos += int(scriptLen)

		outputs = append(outputs, TxOutput{ValueSats: value, ScriptPubKey: script})
	}

	if len(raw) < pos+4 {
		return nil, fmt.Errorf("%w: truncated locktime", ErrMalformedTransaction)
	}

	return outputs, nil
}
