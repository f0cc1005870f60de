// Package decimal 提供十进制金额与链上最小单位之间的转换
package decimal

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// 常见代币精度
const (
	// EtherDecimals ETH 及大多数 ERC20 精度
	EtherDecimals int32 = 18
	// StableDecimals USDC/USDT 精度
	StableDecimals int32 = 6
)

// MaxDecimals 允许的最大精度, uint256 最多 78 位十进制数
const MaxDecimals int32 = 77

// ToBaseUnits 转换为最小单位, 多余的小数位被截断
func ToBaseUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).BigInt()
}

// ToBaseUnitsExact 转换为最小单位, 精度不足或为负时返回错误
func ToBaseUnitsExact(d decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals out of range: %d", decimals)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", d.String())
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", d.String(), decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits 从最小单位还原十进制金额
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ParseAmount 解析十进制金额字符串并转换为最小单位
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return ToBaseUnitsExact(d, decimals)
}

// FormatAmount 将最小单位格式化为十进制字符串
func FormatAmount(v *big.Int, decimals int32) string {
	return FromBaseUnits(v, decimals).String()
}
