package wire

// Checksum computes the CRC-8 carried by 2.0 frames.
//
// The algorithm is table-free and must stay bit-exact with the target
// firmware: each byte is folded into the accumulator, then eight shifts
// follow, reducing with ChecksumConstant whenever the high bit falls out.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = UpdateChecksum(crc, b)
	}
	return crc
}

// UpdateChecksum folds one more byte into a running checksum.
func UpdateChecksum(crc, b byte) byte {
	crc ^= b
	for range 8 {
		if crc&0x80 != 0 {
			crc = (crc << 1) ^ ChecksumConstant
		} else {
			crc <<= 1
		}
	}
	return crc
}
