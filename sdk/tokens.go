package sdk

import (
	"math"
)

// TokenUnit is the number of SAS in one ZCN.
const TokenUnit = 10_000_000_000

// ZCNToSAS converts a token amount to SAS, rounding to the nearest unit.
func ZCNToSAS(zcn float64) int64 {
	return int64(math.Round(zcn * TokenUnit))
}

// SASToZCN converts SAS to tokens.
func SASToZCN(sas int64) float64 {
	return float64(sas) / TokenUnit
}
