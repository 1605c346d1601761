// Package wire implements the line protocol between the host and the
// charge controller firmware. It only depends on packages TinyGo supports.
//
// Host to MCU:
//
//	c\n          convert both channels once
//	d<compare>\n write the duty cycle register
//
// MCU to host:
//
//	v,<voltage>,<current>\n  conversion result in raw ADC counts
//	e,<message>\n            hardware fault
package wire

import (
	"errors"
	"strconv"
	"strings"
)

// Command and message kinds.
const (
	CmdConvert  = 'c'
	CmdDuty     = 'd'
	KindSample  = 'v'
	KindFault   = 'e'
	MaxLineSize = 32
)

var (
	ErrEmpty       = errors.New("empty line")
	ErrUnknownKind = errors.New("unknown line kind")
	ErrFormat      = errors.New("malformed line")
)

// Command is a parsed host request.
type Command struct {
	Kind    byte
	Compare uint32
}

// Message is a parsed firmware report.
type Message struct {
	Kind    byte
	Voltage uint16
	Current uint16
	Text    string
}

// AppendConvert appends a conversion request.
func AppendConvert(dst []byte) []byte {
	return append(dst, CmdConvert, '\n')
}

// AppendDuty appends a duty cycle write.
func AppendDuty(dst []byte, compare uint32) []byte {
	dst = append(dst, CmdDuty)
	dst = strconv.AppendUint(dst, uint64(compare), 10)
	return append(dst, '\n')
}

// AppendSample appends a conversion result.
func AppendSample(dst []byte, voltage, current uint16) []byte {
	dst = append(dst, KindSample, ',')
	dst = strconv.AppendUint(dst, uint64(voltage), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(current), 10)
	return append(dst, '\n')
}

// AppendFault appends a fault report. Newlines in msg are replaced.
func AppendFault(dst []byte, msg string) []byte {
	dst = append(dst, KindFault, ',')
	dst = append(dst, strings.ReplaceAll(msg, "\n", " ")...)
	return append(dst, '\n')
}

// ParseCommand parses one host request without its line terminator.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmpty
	}

	switch line[0] {
	case CmdConvert:
		if len(line) != 1 {
			return Command{}, ErrFormat
		}
		return Command{Kind: CmdConvert}, nil
	case CmdDuty:
		v, err := strconv.ParseUint(line[1:], 10, 32)
		if err != nil {
			return Command{}, ErrFormat
		}
		return Command{Kind: CmdDuty, Compare: uint32(v)}, nil
	default:
		return Command{}, ErrUnknownKind
	}
}

// ParseMessage parses one firmware report without its line terminator.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, ErrEmpty
	}
	if len(line) < 2 || line[1] != ',' {
		return Message{}, ErrFormat
	}

	switch line[0] {
	case KindSample:
		parts := strings.Split(line[2:], ",")
		if len(parts) != 2 {
			return Message{}, ErrFormat
		}
		v, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return Message{}, ErrFormat
		}
		i, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return Message{}, ErrFormat
		}
		return Message{Kind: KindSample, Voltage: uint16(v), Current: uint16(i)}, nil
	case KindFault:
		return Message{Kind: KindFault, Text: line[2:]}, nil
	default:
		return Message{}, ErrUnknownKind
	}
}
