package ymodem

// parseDecimal parses an unsigned decimal field. The field ends at a nul byte
// or at the end of the slice. Only digits are accepted and at most ten of
// them; anything else reports false and a zero value.
func parseDecimal(field []byte) (uint64, bool) {
	var val uint64
	for i := 0; i <= maxDecimalDigits; i++ {
		if i == len(field) || field[i] == 0 {
			return val, true
		}
		c := field[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		val = val*10 + uint64(c-'0')
	}
	return 0, false
}
