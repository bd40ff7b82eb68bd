// Unit tests for object pools
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"
)

func TestByteBuffer(t *testing.T) {
	b := GetByteBuffer()
	defer PutByteBuffer(b)

	if b.Len() != 0 {
		t.Errorf("new buffer should be empty, got %d", b.Len())
	}
	b.WriteString("G1")
	b.WriteByte(' ')
	b.WriteByte('X')
	b.AppendFloat(10.5)
	b.Write([]byte(" F"))
	b.AppendInt(1200)

	if got := b.String(); got != "G1 X10.5 F1200" {
		t.Errorf("unexpected contents %q", got)
	}

	b.Reset()
	if b.Len() != 0 {
		t.Error("Reset should empty the buffer")
	}
}

func TestByteBufferAppendFloatShortest(t *testing.T) {
	b := GetByteBuffer()
	defer PutByteBuffer(b)

	tests := []struct {
		in   float64
		want string
	}{
		{10, "10"},
		{0.1, "0.1"},
		{-2.25, "-2.25"},
		{1200, "1200"},
	}
	for _, tt := range tests {
		b.Reset()
		b.AppendFloat(tt.in)
		if b.String() != tt.want {
			t.Errorf("AppendFloat(%v) = %q, want %q", tt.in, b.String(), tt.want)
		}
	}
}

func TestByteBufferLittleEndian(t *testing.T) {
	b := GetByteBuffer()
	defer PutByteBuffer(b)

	b.AppendFloat32LE(1.5)
	b.AppendUint32LE(7)
	raw := b.Bytes()
	if len(raw) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(raw))
	}
	if f := math.Float32frombits(binary.LittleEndian.Uint32(raw[0:4])); f != 1.5 {
		t.Errorf("expected 1.5, got %v", f)
	}
	if u := binary.LittleEndian.Uint32(raw[4:8]); u != 7 {
		t.Errorf("expected 7, got %d", u)
	}
}

func TestByteBufferOversized(t *testing.T) {
	b := GetByteBuffer()
	b.Write(make([]byte, maxPooledBuffer+1))
	PutByteBuffer(b) // dropped, must not panic

	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Error("buffer from pool should be empty")
	}
	PutByteBuffer(b2)
	PutByteBuffer(nil)
}

func TestStringSlicePool(t *testing.T) {
	s := GetStringSlice()
	if len(*s) != 0 {
		t.Errorf("new slice should be empty, got %d", len(*s))
	}
	*s = append(*s, "G1", "X10")
	PutStringSlice(s)

	s2 := GetStringSlice()
	if len(*s2) != 0 {
		t.Error("slice from pool should be empty")
	}
	PutStringSlice(s2)
	PutStringSlice(nil)
}

func TestByteBufferPoolConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := GetByteBuffer()
				b.AppendInt(n)
				if b.Len() == 0 {
					t.Error("buffer should not be empty")
				}
				PutByteBuffer(b)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkByteBufferPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetByteBuffer()
		buf.WriteString("G1 X")
		buf.AppendFloat(12.345)
		PutByteBuffer(buf)
	}
}
