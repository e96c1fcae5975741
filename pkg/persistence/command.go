package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command is one logged mutation: a verb such as SET or DEL plus raw arguments.
type Command struct {
	Name string
	Args [][]byte
}

// ErrMalformedCommand is returned when a frame payload does not decode.
var ErrMalformedCommand = errors.New("malformed command payload")

// EncodeCommand serializes a command as uvarint-length-prefixed fields:
// field count, then the name, then each argument.
func EncodeCommand(name string, args ...[]byte) []byte {
	size := binary.MaxVarintLen64 * (len(args) + 2)
	size += len(name)
	for _, a := range args {
		size += len(a)
	}
	buf := make([]byte, 0, size)
	buf = binary.AppendUvarint(buf, uint64(len(args)+1))
	buf = binary.AppendUvarint(buf, uint64(len(name)))
	buf = append(buf, name...)
	for _, a := range args {
		buf = binary.AppendUvarint(buf, uint64(len(a)))
		buf = append(buf, a...)
	}
	return buf
}

// DecodeCommand is the inverse of EncodeCommand. Arguments alias payload.
func DecodeCommand(payload []byte) (*Command, error) {
	count, n := binary.Uvarint(payload)
	if n <= 0 || count == 0 || count > uint64(len(payload)) {
		return nil, ErrMalformedCommand
	}
	payload = payload[n:]

	fields := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		l, n := binary.Uvarint(payload)
		if n <= 0 || l > uint64(len(payload)-n) {
			return nil, fmt.Errorf("%w: field %d", ErrMalformedCommand, i)
		}
		fields = append(fields, payload[n:n+int(l)])
		payload = payload[n+int(l):]
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedCommand, len(payload))
	}
	return &Command{Name: string(fields[0]), Args: fields[1:]}, nil
}

// FormatCommand returns the complete log frame for a command, ready for
// AOFWriter.Write.
func FormatCommand(name string, args ...[]byte) []byte {
	return AppendFrame(nil, OpCodeCommand, EncodeCommand(name, args...))
}

// ParseCommand reads one framed command from r. It returns io.EOF at a clean
// end of log and the frame errors (ErrIncompleteFrame, ErrChecksumMismatch, ...)
// otherwise.
func ParseCommand(r io.Reader) (*Command, int, error) {
	op, payload, n, err := ReadFrame(r)
	if err != nil {
		return nil, n, err
	}
	if op != OpCodeCommand {
		return nil, n, fmt.Errorf("%w: unknown opcode 0x%02x", ErrMalformedCommand, op)
	}
	cmd, err := DecodeCommand(payload)
	if err != nil {
		return nil, n, err
	}
	return cmd, n, nil
}
