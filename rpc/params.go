package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"metagate/crypto"
)

// decodeParams unmarshals the first positional parameter into dst.
func decodeParams(params []json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("parameter object required")
	}
	decoder := json.NewDecoder(bytes.NewReader(params[0]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

// parseWord accepts a JSON number, a decimal string or a 0x hex string. An
// absent value is zero.
func parseWord(field string, raw json.RawMessage) (*uint256.Int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return new(uint256.Int), nil
	}
	var text string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
	} else {
		text = string(trimmed)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%s: empty value", field)
	}

	value := new(big.Int)
	ok := false
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		_, ok = value.SetString(text[2:], 16)
	} else {
		_, ok = value.SetString(text, 10)
	}
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid unsigned integer %q", field, text)
	}
	word, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%s: value exceeds 256 bits", field)
	}
	return word, nil
}

func parseIdentity(field, raw string) (common.Address, error) {
	id, err := crypto.ParseIdentity(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return id, nil
}

// parseSignature decodes a 0x hex signature. Length and recovery-id checks are
// left to the gateway so they surface with their taxonomy codes.
func parseSignature(raw string) ([]byte, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return sig, nil
}

func parseHash(field, raw string) (common.Hash, error) {
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", field, err)
	}
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s: expected %d bytes, got %d", field, common.HashLength, len(decoded))
	}
	return common.BytesToHash(decoded), nil
}

// ParseWord parses a decimal or 0x hex 256-bit unsigned integer the same way
// the RPC server does.
func ParseWord(raw string) (*uint256.Int, error) {
	return parseWord("value", json.RawMessage(strconv.Quote(raw)))
}
