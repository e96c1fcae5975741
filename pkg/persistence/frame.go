package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Log frame layout: [Magic(1)][OpCode(1)][Length(4)][CRC32(4)][Payload(N)],
// integers little endian, CRC over the payload only.
const (
	// MagicByte marks the start of every frame.
	MagicByte = 0xA5

	// HeaderSize is Magic + OpCode + Length + CRC32.
	HeaderSize = 10

	// OpCodeCommand frames carry one encoded Command.
	OpCodeCommand = 0x01

	// MaxPayloadSize bounds a single frame so a corrupted length field cannot
	// trigger a huge allocation during replay.
	MaxPayloadSize = 64 << 20
)

var (
	// ErrInvalidMagic indicates the stream lost synchronization or is not a log.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates corruption within a frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended mid-frame, typically after a crash.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrFrameTooLarge indicates a length field above MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")
)

// AppendFrame appends the framed payload to dst and returns the extended slice.
func AppendFrame(dst []byte, op byte, payload []byte) []byte {
	var header [HeaderSize]byte
	header[0] = MagicByte
	header[1] = op
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}

// FrameWriter writes frames to an io.Writer in a single Write call each.
type FrameWriter struct {
	w   io.Writer
	buf []byte
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes and writes one frame.
func (fw *FrameWriter) WriteFrame(op byte, payload []byte) error {
	fw.buf = AppendFrame(fw.buf[:0], op, payload)
	_, err := fw.w.Write(fw.buf)
	return err
}

// ReadFrame reads the next frame, validating the magic byte, the length
// bound and the checksum. It returns the opcode, the payload and the number of
// bytes consumed. A clean io.EOF is returned only on a frame boundary.
func ReadFrame(r io.Reader) (byte, []byte, int, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if err == io.EOF {
			return 0, nil, 0, io.EOF
		}
		return 0, nil, n, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return 0, nil, HeaderSize, ErrInvalidMagic
	}
	op := header[1]
	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])
	if length > MaxPayloadSize {
		return op, nil, HeaderSize, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if m, err := io.ReadFull(r, payload); err != nil {
		return op, nil, HeaderSize + m, ErrIncompleteFrame
	}
	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return op, nil, HeaderSize + int(length), ErrChecksumMismatch
	}
	return op, payload, HeaderSize + int(length), nil
}
