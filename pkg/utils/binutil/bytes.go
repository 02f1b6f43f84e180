package binutil

// ParseUint16BigEndian reads one Modbus word.
func ParseUint16BigEndian(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

// WriteUint16BigEndian writes one Modbus word into buf[0:2].
func WriteUint16BigEndian(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

// BytesToWords splits a register payload into big-endian words. A trailing odd
// byte is ignored.
func BytesToWords(buf []byte) []uint16 {
	n := len(buf) / 2
	words := make([]uint16, n)
	for i := 0; i < n; i++ {
		words[i] = ParseUint16BigEndian(buf[2*i:])
	}
	return words
}

// WordsToBytes is the inverse of BytesToWords.
func WordsToBytes(words []uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		WriteUint16BigEndian(buf[2*i:], w)
	}
	return buf
}

// BoolToByte maps true to 1.
func BoolToByte(buf []bool) []byte {
	r := make([]byte, len(buf))
	for i, v := range buf {
		if v {
			r[i] = 1
		}
	}
	return r
}

// ByteToBool maps every non-zero byte to true.
func ByteToBool(buf []byte) []bool {
	r := make([]bool, len(buf))
	for i, v := range buf {
		if v > 0 {
			r[i] = true
		}
	}
	return r
}

// ShrinkBool packs one byte per bit into eight bits per byte, LSB first.
func ShrinkBool(buf []byte) []byte {
	length := len(buf)
	ln := length >> 3
	if length&0x07 > 0 {
		ln++
	}

	b := make([]byte, ln)

	for i := 0; i < length; i++ {
		if buf[i] > 0 {
			b[i>>3] += 1 << (i & 0x07)
		}
	}

	return b
}

// ExpandBool unpacks the first count bytes of buf, eight values each.
func ExpandBool(buf []byte, count int) []byte {
	if count > len(buf) {
		count = len(buf)
	}
	expandLength := count << 3
	b := make([]byte, expandLength)
	for i := 0; i < expandLength; i++ {
		if buf[i>>3]&(1<<(i&0x07)) > 0 {
			b[i] = 1
		}
	}
	return b
}

// PackBools packs coil values LSB first, the Modbus bit order.
func PackBools(bits []bool) []byte {
	return ShrinkBool(BoolToByte(bits))
}

// UnpackBools returns the first count coil values of a packed payload. The
// result is shorter than count when the payload is.
func UnpackBools(buf []byte, count int) []bool {
	expanded := ExpandBool(buf, len(buf))
	if count < len(expanded) {
		expanded = expanded[:count]
	}
	return ByteToBool(expanded)
}
