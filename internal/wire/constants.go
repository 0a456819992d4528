// Package wire implements the length-prefixed message framing shared by the
// server core and the client: a 9-byte little-endian header followed by the
// payload it describes.
package wire

// CompressionAlgorithm is an opaque tag copied verbatim by the core; it
// never inspects or acts on the value. Interpreting it is an application
// concern (see examples/netring-echo).
type CompressionAlgorithm uint8

const (
	CompressionNone CompressionAlgorithm = 0
	CompressionLZMA CompressionAlgorithm = 1
	CompressionGZIP CompressionAlgorithm = 2
	CompressionLZ4  CompressionAlgorithm = 3
	CompressionZSTD CompressionAlgorithm = 4
)

// Operation tags the kind of ring submission an author-log entry refers to.
type Operation uint8

const (
	OpSocketAccept Operation = 0
	OpRead         Operation = 1
	OpWrite        Operation = 2
	OpClose        Operation = 3
)
