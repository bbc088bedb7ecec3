// Package eventstream implements the binary message format used on the
// wire to AWS IoT Core's native IPC protocol, and reused verbatim as the
// internal core-bus frame format (package corebus wraps it rather than
// inventing a second framing). Grounded on the teacher's
// transport/pdu.go prelude/header-region parsing idiom: a fixed-size
// header read first, then a bounds-checked variable region, never
// trusting a length field until it has been checked against the bytes
// actually available.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package eventstream

import (
	"encoding/binary"
	"fmt"
)

// Type is the one-byte header value-type tag.
type Type uint8

const (
	TrueBool Type = iota
	FalseBool
	Byte
	Int16
	Int32
	Int64
	ByteBuffer
	String
	Timestamp
	Uuid
)

func (t Type) String() string {
	switch t {
	case TrueBool:
		return "true-bool"
	case FalseBool:
		return "false-bool"
	case Byte:
		return "byte"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case ByteBuffer:
		return "byte-buffer"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	case Uuid:
		return "uuid"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Header is one decoded name/type/value triple. Only the field(s)
// matching Type are meaningful.
type Header struct {
	Name      string
	Type      Type
	Bool      bool
	Byte      int8
	Int16     int16
	Int32     int32
	Int64     int64
	Bytes     []byte // ByteBuffer — borrows from the decoded message's buffer
	Str       string // String — borrows from the decoded message's buffer
	Timestamp int64  // ms since epoch
	UUID      [16]byte
}

const maxNameLen = 255 // name_len is a single byte

// appendHeader writes one header (name, typed value) to dst, returning
// the extended slice, or an error if name exceeds maxNameLen or a
// String/ByteBuffer value exceeds the u16 length field.
func appendHeader(dst []byte, h Header) ([]byte, error) {
	if len(h.Name) > maxNameLen {
		return nil, fmt.Errorf("eventstream: header name %q exceeds %d bytes", h.Name, maxNameLen)
	}
	dst = append(dst, byte(len(h.Name)))
	dst = append(dst, h.Name...)
	dst = append(dst, byte(h.Type))
	switch h.Type {
	case TrueBool, FalseBool:
		// no value bytes
	case Byte:
		dst = append(dst, byte(h.Byte))
	case Int16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(h.Int16))
		dst = append(dst, b[:]...)
	case Int32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(h.Int32))
		dst = append(dst, b[:]...)
	case Int64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(h.Int64))
		dst = append(dst, b[:]...)
	case ByteBuffer:
		if len(h.Bytes) > 0xFFFF {
			return nil, fmt.Errorf("eventstream: header %q byte-buffer too long (%d)", h.Name, len(h.Bytes))
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(h.Bytes)))
		dst = append(dst, b[:]...)
		dst = append(dst, h.Bytes...)
	case String:
		if len(h.Str) > 0xFFFF {
			return nil, fmt.Errorf("eventstream: header %q string too long (%d)", h.Name, len(h.Str))
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(h.Str)))
		dst = append(dst, b[:]...)
		dst = append(dst, h.Str...)
	case Timestamp:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(h.Timestamp))
		dst = append(dst, b[:]...)
	case Uuid:
		dst = append(dst, h.UUID[:]...)
	default:
		return nil, fmt.Errorf("eventstream: unknown header type %d", h.Type)
	}
	return dst, nil
}

// readHeader decodes one header from buf (trusted to already lie within
// the validated headers region) and returns the header plus the
// unconsumed remainder of buf.
func readHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < 2 {
		return Header{}, nil, errBadHeader("truncated header: need name_len+type")
	}
	nameLen := int(buf[0])
	if len(buf) < 1+nameLen+1 {
		return Header{}, nil, errBadHeader("truncated header name")
	}
	h := Header{Name: string(buf[1 : 1+nameLen])}
	buf = buf[1+nameLen:]
	h.Type = Type(buf[0])
	buf = buf[1:]

	switch h.Type {
	case TrueBool:
		h.Bool = true
	case FalseBool:
		h.Bool = false
	case Byte:
		if len(buf) < 1 {
			return Header{}, nil, errBadHeader("truncated byte value")
		}
		h.Byte = int8(buf[0])
		buf = buf[1:]
	case Int16:
		if len(buf) < 2 {
			return Header{}, nil, errBadHeader("truncated int16 value")
		}
		h.Int16 = int16(binary.BigEndian.Uint16(buf))
		buf = buf[2:]
	case Int32:
		if len(buf) < 4 {
			return Header{}, nil, errBadHeader("truncated int32 value")
		}
		h.Int32 = int32(binary.BigEndian.Uint32(buf))
		buf = buf[4:]
	case Int64:
		if len(buf) < 8 {
			return Header{}, nil, errBadHeader("truncated int64 value")
		}
		h.Int64 = int64(binary.BigEndian.Uint64(buf))
		buf = buf[8:]
	case ByteBuffer:
		if len(buf) < 2 {
			return Header{}, nil, errBadHeader("truncated byte-buffer length")
		}
		n := int(binary.BigEndian.Uint16(buf))
		buf = buf[2:]
		if len(buf) < n {
			return Header{}, nil, errBadHeader("truncated byte-buffer value")
		}
		h.Bytes = buf[:n]
		buf = buf[n:]
	case String:
		if len(buf) < 2 {
			return Header{}, nil, errBadHeader("truncated string length")
		}
		n := int(binary.BigEndian.Uint16(buf))
		buf = buf[2:]
		if len(buf) < n {
			return Header{}, nil, errBadHeader("truncated string value")
		}
		h.Str = string(buf[:n])
		buf = buf[n:]
	case Timestamp:
		if len(buf) < 8 {
			return Header{}, nil, errBadHeader("truncated timestamp value")
		}
		h.Timestamp = int64(binary.BigEndian.Uint64(buf))
		buf = buf[8:]
	case Uuid:
		if len(buf) < 16 {
			return Header{}, nil, errBadHeader("truncated uuid value")
		}
		copy(h.UUID[:], buf[:16])
		buf = buf[16:]
	default:
		return Header{}, nil, errBadHeader(fmt.Sprintf("unknown header type %d", h.Type))
	}
	return h, buf, nil
}
