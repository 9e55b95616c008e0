package dsp

import "math"

// PowerToDB converts a [frame][band] power matrix to decibels in place:
// 10*log10(max(amin, S) / ref). When topDB > 0 every value is floored at
// the global maximum minus topDB.
func PowerToDB(power [][]float64, ref, amin, topDB float64) {
	refDB := 10 * math.Log10(math.Max(amin, ref))

	peak := math.Inf(-1)
	for _, row := range power {
		for i, v := range row {
			db := 10*math.Log10(math.Max(amin, v)) - refDB
			row[i] = db
			if db > peak {
				peak = db
			}
		}
	}

	if topDB <= 0 {
		return
	}
	floor := peak - topDB
	for _, row := range power {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}
}
