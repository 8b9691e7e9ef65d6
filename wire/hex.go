package wire

// hexDigits renders nibbles the way the firmware does: uppercase.
const hexDigits = "0123456789ABCDEF"

// AppendHex appends two uppercase hex digits per byte of src, high nibble first.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}

// DecodeHex decodes exactly n bytes from the first 2n characters of src.
//
// Both digit cases are accepted. On error nothing is returned, so callers
// never observe a partially decoded buffer.
func DecodeHex(src []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if err := DecodeHexInto(out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeHexInto decodes len(dst) bytes from src into dst without allocating.
// dst is left untouched when an error is returned.
func DecodeHexInto(dst, src []byte) error {
	n := len(dst)
	if len(src) < 2*n {
		return ErrShortHex
	}

	// Validate everything first: the contract is all or nothing.
	for _, c := range src[:2*n] {
		if _, ok := nibble(c); !ok {
			return ErrIllegalHexDigit
		}
	}

	for i := range n {
		hi, _ := nibble(src[2*i])
		lo, _ := nibble(src[2*i+1])
		dst[i] = hi<<4 | lo
	}
	return nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
