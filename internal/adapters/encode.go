package adapters

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// encodeUint256Call packs a 4-byte selector and one uint256 argument into
// raw call data bytes.
func encodeUint256Call(selector string, rawAmount decimal.Decimal) ([]byte, error) {
	selBytes, err := hex.DecodeString(strings.TrimPrefix(selector, "0x"))
	if err != nil || len(selBytes) != 4 {
		return nil, fmt.Errorf("invalid selector %q", selector)
	}

	amountInt, ok := new(big.Int).SetString(rawAmount.String(), 10)
	if !ok || amountInt.Sign() < 0 || amountInt.BitLen() > 256 {
		return nil, fmt.Errorf("amount %s does not fit uint256", rawAmount)
	}

	word := make([]byte, 32)
	amountInt.FillBytes(word)

	return append(selBytes, word...), nil
}
