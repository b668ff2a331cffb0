// Copyright (c) 2019 The Gnet Authors. All rights reserved.
// Copyright (c) 2019 Chao yuepan, Allen Xu
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE

package ring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

type RingBufferSuite struct {
	suite.Suite
}

func (s *RingBufferSuite) TestNewRoundsToPowerOfTwo() {
	s.Equal(8, New(5).size)
	s.Equal(8, New(8).size)
	s.Equal(DefaultBufferSize, New(0).size)
	s.Equal(DefaultBufferSize, New(-1).size)
}

func (s *RingBufferSuite) TestWriteRead() {
	b := New(8)
	s.True(b.IsEmpty())

	n, err := b.Write([]byte("hello"))
	s.NoError(err)
	s.Equal(5, n)
	s.Equal(5, b.Buffered())
	s.Equal(3, b.Available())
	s.Equal([]byte("hello"), b.Bytes())

	out := make([]byte, 3)
	n, err = b.Read(out)
	s.NoError(err)
	s.Equal(3, n)
	s.Equal([]byte("hel"), out)
	s.Equal(2, b.Buffered())

	n, err = b.Read(out)
	s.NoError(err)
	s.Equal(2, n)
	s.Equal([]byte("lo"), out[:n])
	s.True(b.IsEmpty())

	_, err = b.Read(out)
	s.ErrorIs(err, ErrIsEmpty)
}

func (s *RingBufferSuite) TestWrapAround() {
	b := New(8)
	_, err := b.Write([]byte("abcdef"))
	s.NoError(err)
	s.Equal(4, b.Discard(4))

	// 写指针在末尾处绕回缓冲区头部，读取仍是线性视图。
	_, err = b.Write([]byte("1234"))
	s.NoError(err)
	s.Equal(6, b.Buffered())
	s.Equal([]byte("ef1234"), b.Bytes())
}

func (s *RingBufferSuite) TestFullBuffer() {
	b := New(8)
	_, err := b.Write(bytes.Repeat([]byte{'x'}, 8))
	s.NoError(err)
	s.Equal(8, b.Buffered())
	s.Equal(0, b.Available())
	s.False(b.IsEmpty())

	s.Equal(8, b.Discard(8))
	s.True(b.IsEmpty())
}

func (s *RingBufferSuite) TestGrow() {
	b := New(4)
	_, err := b.Write([]byte("ab"))
	s.NoError(err)
	s.Equal(1, b.Discard(1))

	// 写入越过当前容量触发扩容，已缓存内容保持不变。
	payload := bytes.Repeat([]byte{'z'}, 100)
	_, err = b.Write(payload)
	s.NoError(err)
	s.Equal(101, b.Buffered())
	s.Equal(append([]byte("b"), payload...), b.Bytes())
	s.Equal(128, b.size)
}

func (s *RingBufferSuite) TestDiscardMoreThanBuffered() {
	b := New(8)
	_, err := b.Write([]byte("abc"))
	s.NoError(err)
	s.Equal(3, b.Discard(10))
	s.True(b.IsEmpty())
	s.Zero(b.Discard(1))
}

func (s *RingBufferSuite) TestReset() {
	b := New(8)
	_, err := b.Write([]byte("abc"))
	s.NoError(err)
	b.Reset()
	s.True(b.IsEmpty())
	s.Zero(b.Buffered())
	s.Nil(b.Bytes())
}

func TestRingBuffer(t *testing.T) {
	suite.Run(t, new(RingBufferSuite))
}
