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

// Package ring 实现了一个内存高效的环形缓冲区。
package ring

import (
	"errors"
	"math/bits"
)

// DefaultBufferSize 是环形缓冲区的默认初始大小。
const DefaultBufferSize = 1024 // 1KB

// ErrIsEmpty 表示当前环形缓冲区为空，无法继续读取。
var ErrIsEmpty = errors.New("ring-buffer is empty")

// Buffer 是一个环形缓冲区。
//
// 典型用途：异步接入层把一次 Read 收到的原始字节先写入 Buffer，
// 再由命令过滤器取出完整请求，剩余的半条消息留在缓冲区等待下次拼包。
type Buffer struct {
	buf     []byte // 底层字节切片
	size    int    // 缓冲区容量（始终为 2 的幂）
	r       int    // 下一次读取位置
	w       int    // 下一次写入位置
	isEmpty bool   // r == w 时用于区分“空/满”状态
}

// New 创建一个给定初始容量的 Buffer。
// size 会被向上取整为 2 的幂；size <= 0 时使用 DefaultBufferSize。
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	size = ceilToPowerOfTwo(size)
	return &Buffer{
		buf:     make([]byte, size),
		size:    size,
		isEmpty: true,
	}
}

// Buffered 返回当前缓冲区内可读的字节数。
func (b *Buffer) Buffered() int {
	if b.r == b.w {
		if b.isEmpty {
			return 0
		}
		return b.size
	}
	if b.w > b.r {
		return b.w - b.r
	}
	return b.size - b.r + b.w
}

// Available 返回当前缓冲区内剩余的可写字节数。
func (b *Buffer) Available() int {
	return b.size - b.Buffered()
}

// IsEmpty 判断缓冲区是否为空。
func (b *Buffer) IsEmpty() bool {
	return b.isEmpty
}

// Write 将 p 中的全部字节写入缓冲区，空间不足时自动扩容。
func (b *Buffer) Write(p []byte) (int, error) {
	n := len(p)
	if n == 0 {
		return 0, nil
	}
	if b.Available() < n {
		b.grow(b.Buffered() + n)
	}

	if b.w >= b.r {
		tail := b.size - b.w
		if tail >= n {
			copy(b.buf[b.w:], p)
			b.w += n
		} else {
			copy(b.buf[b.w:], p[:tail])
			copy(b.buf, p[tail:])
			b.w = n - tail
		}
	} else {
		copy(b.buf[b.w:], p)
		b.w += n
	}
	if b.w == b.size {
		b.w = 0
	}
	b.isEmpty = false
	return n, nil
}

// Read 从缓冲区读取最多 len(p) 个字节到 p。
// 缓冲区为空时返回 ErrIsEmpty。
func (b *Buffer) Read(p []byte) (int, error) {
	if b.isEmpty {
		return 0, ErrIsEmpty
	}
	n := copy(p, b.Bytes())
	b.Discard(n)
	return n, nil
}

// Bytes 返回当前全部可读字节的线性拷贝，不移动读指针。
func (b *Buffer) Bytes() []byte {
	buffered := b.Buffered()
	if buffered == 0 {
		return nil
	}
	out := make([]byte, buffered)
	if b.w > b.r {
		copy(out, b.buf[b.r:b.w])
	} else {
		n := copy(out, b.buf[b.r:])
		copy(out[n:], b.buf[:b.w])
	}
	return out
}

// Discard 跳过前 n 个可读字节，返回实际跳过的数量。
func (b *Buffer) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	buffered := b.Buffered()
	if n >= buffered {
		b.Reset()
		return buffered
	}
	b.r = (b.r + n) & (b.size - 1)
	return n
}

// Reset 清空缓冲区，保留底层存储。
func (b *Buffer) Reset() {
	b.r = 0
	b.w = 0
	b.isEmpty = true
}

// grow 将缓冲区扩容为能容纳 needed 字节的最小的 2 的幂。
func (b *Buffer) grow(needed int) {
	newSize := ceilToPowerOfTwo(needed)
	newBuf := make([]byte, newSize)
	buffered := b.Buffered()
	if buffered > 0 {
		if b.w > b.r {
			copy(newBuf, b.buf[b.r:b.w])
		} else {
			n := copy(newBuf, b.buf[b.r:])
			copy(newBuf[n:], b.buf[:b.w])
		}
	}
	b.buf = newBuf
	b.size = newSize
	b.r = 0
	b.w = buffered
}

func ceilToPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
