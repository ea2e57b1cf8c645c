// Package qty 物料数量的统一小数处理。
// 预留/占用台账的所有读写都经过这里，避免浮点累加漂移。
package qty

import "github.com/shopspring/decimal"

// Scale 数量统一保留的小数位数
const Scale = 6

// epsilon 近零容差：|v| <= 1e-6 视为零
var epsilon = decimal.New(1, -Scale)

// Normalize 归一化数量到6位小数
func Normalize(v decimal.Decimal) decimal.Decimal {
	return v.Round(Scale)
}

// FromFloat 从float64构造归一化数量
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(Scale)
}

// IsEffectivelyZero 数量在容差内视为零
func IsEffectivelyZero(v decimal.Decimal) bool {
	return v.Abs().Cmp(epsilon) <= 0
}

// AtLeast a >= b（容差比较，a比b最多少1e-6仍算足够）
func AtLeast(a, b decimal.Decimal) bool {
	return a.Sub(b).Cmp(epsilon.Neg()) >= 0
}

// Epsilon 返回容差值
func Epsilon() decimal.Decimal {
	return epsilon
}
