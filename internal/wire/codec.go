package wire

// HeaderSize is the on-wire length of a MessageHeaders value.
const HeaderSize = 9

// MessageHeaders is the 9-byte header prefixing every framed message: an
// 8-byte little-endian payload size followed by a 1-byte compression tag.
type MessageHeaders struct {
	Size      uint64
	ComprAlg  CompressionAlgorithm
}

// Marshal serializes h into buf[0:9]. buf must have length >= HeaderSize.
//
// The byte order is fixed little-endian regardless of host endianness, to
// match the original C implementation's field-at-a-time encoding.
func Marshal(h MessageHeaders, buf []byte) {
	_ = buf[8] // bounds check hint
	for i := 0; i < 8; i++ {
		buf[i] = byte(h.Size >> (uint(i) * 8))
	}
	buf[8] = byte(h.ComprAlg)
}

// Unmarshal deserializes buf[0:9] into a MessageHeaders. buf must have
// length >= HeaderSize.
func Unmarshal(buf []byte) MessageHeaders {
	_ = buf[8]
	var size uint64
	for i := 0; i < 8; i++ {
		size |= uint64(buf[i]) << (uint(i) * 8)
	}
	return MessageHeaders{Size: size, ComprAlg: CompressionAlgorithm(buf[8])}
}
