/*

ABI helpers for the small, fixed set of view functions the engine reads.
Selectors are precomputed 4-byte function ids; the engine never needs a
general ABI encoder for read-only calls of this shape.

*/

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Precomputed 4-byte selectors.
const (
	selBalanceOf         = "0x70a08231" // balanceOf(address)
	selDecimals          = "0x313ce567" // decimals()
	selSymbol            = "0x95d89b41" // symbol()
	selTotalSupply       = "0x18160ddd" // totalSupply()
	selTotalAssets       = "0x01e1d114" // totalAssets()
	selDepositToken      = "0xc89039c5" // depositToken()
	selTotalUserShares   = "0x7d2a4a1c" // totalUserShares()
	selHasOpenLpPosition = "0x3c61f0d2" // hasOpenLpPosition()
)

var ErrMalformedReturn = errors.New("malformed contract return data")

// padAddress left-pads a hex address into one 32-byte call argument.
func padAddress(addr string) (string, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(addr)), "0x")
	if len(trimmed) != 40 {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return strings.Repeat("0", 24) + trimmed, nil
}

// decodeUint256 parses a single uint256 return word.
func decodeUint256(hexResult string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(hexResult, "0x")
	if trimmed == "" {
		return nil, ErrMalformedReturn
	}
	if len(trimmed) > 64 {
		trimmed = trimmed[:64]
	}
	value, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReturn, hexResult)
	}
	return value, nil
}

// decodeBool parses a single bool return word.
func decodeBool(hexResult string) (bool, error) {
	value, err := decodeUint256(hexResult)
	if err != nil {
		return false, err
	}
	return value.Sign() != 0, nil
}

// decodeAddress parses a single address return word.
func decodeAddress(hexResult string) (string, error) {
	trimmed := strings.TrimPrefix(hexResult, "0x")
	if len(trimmed) < 64 {
		return "", ErrMalformedReturn
	}
	return "0x" + trimmed[24:64], nil
}

// ToDecimal converts a raw integer token amount into its decimal form.
func ToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Shift(-decimals)
}

// TokenBalance reads an ERC20 balance for a holder, scaled by the token's
// decimals.
func (c *Client) TokenBalance(ctx context.Context, token, holder string) (decimal.Decimal, error) {
	arg, err := padAddress(holder)
	if err != nil {
		return decimal.Zero, err
	}
	hexResult, err := c.EthCall(ctx, token, selBalanceOf+arg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s failed: %w", token, err)
	}
	raw, err := decodeUint256(hexResult)
	if err != nil {
		return decimal.Zero, err
	}

	tokenDecimals, err := c.TokenDecimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(raw, tokenDecimals), nil
}

// TokenDecimals reads an ERC20 token's decimals.
func (c *Client) TokenDecimals(ctx context.Context, token string) (int32, error) {
	hexResult, err := c.EthCall(ctx, token, selDecimals)
	if err != nil {
		return 0, fmt.Errorf("decimals %s failed: %w", token, err)
	}
	raw, err := decodeUint256(hexResult)
	if err != nil {
		return 0, err
	}
	if !raw.IsInt64() || raw.Int64() > 36 {
		return 0, fmt.Errorf("%w: implausible decimals %s", ErrMalformedReturn, raw)
	}
	return int32(raw.Int64()), nil
}

// TotalAssets reads a vault-style totalAssets() view, scaled by decimals.
func (c *Client) TotalAssets(ctx context.Context, vault string, decimals int32) (decimal.Decimal, error) {
	hexResult, err := c.EthCall(ctx, vault, selTotalAssets)
	if err != nil {
		return decimal.Zero, fmt.Errorf("totalAssets %s failed: %w", vault, err)
	}
	raw, err := decodeUint256(hexResult)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(raw, decimals), nil
}

// TotalSupply reads an ERC20 totalSupply(), scaled by decimals.
func (c *Client) TotalSupply(ctx context.Context, token string, decimals int32) (decimal.Decimal, error) {
	hexResult, err := c.EthCall(ctx, token, selTotalSupply)
	if err != nil {
		return decimal.Zero, fmt.Errorf("totalSupply %s failed: %w", token, err)
	}
	raw, err := decodeUint256(hexResult)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(raw, decimals), nil
}

// DepositToken reads a new-style vault's depositToken(). ErrUnsupported
// means the vault predates the user-flow interface.
func (c *Client) DepositToken(ctx context.Context, vault string) (string, error) {
	hexResult, err := c.EthCall(ctx, vault, selDepositToken)
	if err != nil {
		return "", err
	}
	return decodeAddress(hexResult)
}

// TotalUserShares reads a new-style vault's totalUserShares().
func (c *Client) TotalUserShares(ctx context.Context, vault string, decimals int32) (decimal.Decimal, error) {
	hexResult, err := c.EthCall(ctx, vault, selTotalUserShares)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := decodeUint256(hexResult)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDecimal(raw, decimals), nil
}

// HasOpenLpPosition reads a new-style vault's hasOpenLpPosition().
func (c *Client) HasOpenLpPosition(ctx context.Context, vault string) (bool, error) {
	hexResult, err := c.EthCall(ctx, vault, selHasOpenLpPosition)
	if err != nil {
		return false, err
	}
	return decodeBool(hexResult)
}
