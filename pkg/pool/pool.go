// Object pools for reducing GC pressure in hot paths
//
// Provides reusable object pools for:
// - String slices (GCode line tokens)
// - Byte buffers (GCode serialization and vertex packing)
//
// Usage:
//
//	tokens := pool.GetStringSlice()
//	defer pool.PutStringSlice(tokens)
//	// use tokens...
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"encoding/binary"
	"math"
	"strconv"
	"sync"
)

// maxPooledBuffer is the largest buffer capacity returned to the pool
const maxPooledBuffer = 64 * 1024

// ByteBuffer is an append-only byte buffer that can be recycled
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{buf: make([]byte, 0, 256)}
	},
}

// GetByteBuffer gets an empty byte buffer from the pool
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a byte buffer to the pool
func PutByteBuffer(b *ByteBuffer) {
	if b == nil || cap(b.buf) > maxPooledBuffer {
		return
	}
	byteBufferPool.Put(b)
}

// Bytes returns the buffer's byte slice
func (b *ByteBuffer) Bytes() []byte { return b.buf }

// String returns the buffer contents as a string
func (b *ByteBuffer) String() string { return string(b.buf) }

// Len returns the buffer length
func (b *ByteBuffer) Len() int { return len(b.buf) }

// Reset clears the buffer
func (b *ByteBuffer) Reset() { b.buf = b.buf[:0] }

// Write appends bytes to the buffer
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString appends a string
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// AppendFloat appends v in the shortest form that round-trips
func (b *ByteBuffer) AppendFloat(v float64) {
	b.buf = strconv.AppendFloat(b.buf, v, 'f', -1, 64)
}

// AppendInt appends a decimal integer
func (b *ByteBuffer) AppendInt(v int) {
	b.buf = strconv.AppendInt(b.buf, int64(v), 10)
}

// AppendFloat32LE appends v as little-endian IEEE-754 bits
func (b *ByteBuffer) AppendFloat32LE(v float32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
}

// AppendUint32LE appends v as little-endian
func (b *ByteBuffer) AppendUint32LE(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

// StringSlice pool - for line tokens from strings.Fields style splitting
var stringSlicePool = sync.Pool{
	New: func() any {
		s := make([]string, 0, 16)
		return &s
	},
}

// GetStringSlice gets an empty string slice from the pool
func GetStringSlice() *[]string {
	s := stringSlicePool.Get().(*[]string)
	*s = (*s)[:0]
	return s
}

// PutStringSlice returns a string slice to the pool
func PutStringSlice(s *[]string) {
	if s == nil || cap(*s) > 256 {
		return
	}
	// Clear to allow GC of string contents
	clear(*s)
	*s = (*s)[:0]
	stringSlicePool.Put(s)
}
