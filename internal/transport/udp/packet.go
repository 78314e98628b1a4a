// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

/*
Packet layout (big-endian):

	+-----------------+---------+-------+----------------------------------+
	| Field           | Type    | Bytes | Description                      |
	+-----------------+---------+-------+----------------------------------+
	| Sequence        | uint32  | 4     | Telemetry sequence number        |
	| Timestamp       | int64   | 8     | Nanoseconds since epoch          |
	| Peak            | float32 | 4     | Strongest frequency, Hz          |
	| Reference       | float32 | 4     | Matched reference pitch, Hz      |
	| Deviation       | float32 | 4     | Peak minus reference, Hz         |
	| Label length    | uint8   | 1     | L                                |
	| Label           | bytes   | L     | UTF-8 note label                 |
	| Magnitude count | uint16  | 2     | N                                |
	| Magnitudes      | float32 | N * 4 | Decimated spectrum magnitudes    |
	+-----------------+---------+-------+----------------------------------+
*/

const (
	headerSize = 4 + 8 + 4 + 4 + 4 + 1

	// MaxDatagram is the largest UDP payload over IPv4.
	MaxDatagram = 65507

	// MaxMagnitudes is the largest magnitude count that still fits one
	// datagram next to a maximum length label.
	MaxMagnitudes = (MaxDatagram - headerSize - math.MaxUint8 - 2) / 4
)

// ErrShortPacket is returned when decoding a truncated packet.
var ErrShortPacket = errors.New("udp: packet too short")

// Packet is the wire form of one telemetry record.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Peak       float32
	Reference  float32
	Deviation  float32
	Label      string
	Magnitudes []float32
}

// AppendTo encodes p onto buf and returns the extended buffer.
func (p *Packet) AppendTo(buf []byte) ([]byte, error) {
	if len(p.Label) > math.MaxUint8 {
		return buf, fmt.Errorf("udp: label %q exceeds %d bytes", p.Label, math.MaxUint8)
	}
	if len(p.Magnitudes) > MaxMagnitudes {
		return buf, fmt.Errorf("udp: %d magnitudes exceed %d", len(p.Magnitudes), MaxMagnitudes)
	}
	buf = binary.BigEndian.AppendUint32(buf, p.Sequence)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Timestamp))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(p.Peak))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(p.Reference))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(p.Deviation))
	buf = append(buf, byte(len(p.Label)))
	buf = append(buf, p.Label...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Magnitudes)))
	for _, m := range p.Magnitudes {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(m))
	}
	return buf, nil
}

// Decode parses a packet produced by AppendTo.
func Decode(data []byte) (Packet, error) {
	var p Packet
	if len(data) < headerSize {
		return p, ErrShortPacket
	}
	r := bytes.NewReader(data)
	var hdr struct {
		Sequence  uint32
		Timestamp int64
		Peak      float32
		Reference float32
		Deviation float32
		LabelLen  uint8
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return p, fmt.Errorf("%w: %w", ErrShortPacket, err)
	}
	p.Sequence, p.Timestamp = hdr.Sequence, hdr.Timestamp
	p.Peak, p.Reference, p.Deviation = hdr.Peak, hdr.Reference, hdr.Deviation

	label := make([]byte, hdr.LabelLen)
	if _, err := io.ReadFull(r, label); err != nil {
		return p, fmt.Errorf("%w: label: %w", ErrShortPacket, err)
	}
	p.Label = string(label)

	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return p, fmt.Errorf("%w: count: %w", ErrShortPacket, err)
	}
	if r.Len() < int(count)*4 {
		return p, fmt.Errorf("%w: want %d magnitudes, have %d bytes", ErrShortPacket, count, r.Len())
	}
	p.Magnitudes = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, p.Magnitudes); err != nil {
		return p, fmt.Errorf("%w: magnitudes: %w", ErrShortPacket, err)
	}
	return p, nil
}
