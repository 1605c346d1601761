package sample

import "math/bits"

// Shift returns log2(n) for a power-of-two per-channel sample count.
// ok is false when n is not a power of two.
func Shift(n int) (shift uint, ok bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros(uint(n))), true
}

// Average reduces an interleaved batch to its two channel means. Even
// positions are summed into the voltage average and odd positions into the
// current average; each sum is right-shifted by shift, so the result is
// truncated, never rounded.
func Average(batch Batch, shift uint) Averages {
	var sumVoltage, sumCurrent uint32
	for i := 0; i+1 < len(batch); i += 2 {
		sumVoltage += uint32(batch[i])
		sumCurrent += uint32(batch[i+1])
	}

	return Averages{
		Voltage: uint16(sumVoltage >> shift),
		Current: uint16(sumCurrent >> shift),
	}
}

// Mean2 averages two consecutive current readings, truncating.
func Mean2(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) >> 1)
}
