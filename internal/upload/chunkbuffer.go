package upload

import (
	"context"
	"io"
)

// chunkBuffer holds the bytes of the in-flight chunk for the unknown-size
// regime — a fixed-capacity region plus a look-ahead byte, so that any
// prefix the server acknowledges can be resent without re-reading the
// non-seekable source. A reusable byte slice kept across attempts until the
// server has fully accepted it, re-uploaded from the front on partial
// acceptance.
type chunkBuffer struct {
	buf         []byte
	usedLen     int
	startOffset int64

	lookAhead      byte
	hasLookAhead   bool
	sourceAtEOF    bool
	knownTotalOnce int64 // valid only once sourceAtEOF is true
}

func newChunkBuffer(chunkSize int64) *chunkBuffer {
	return &chunkBuffer{buf: make([]byte, chunkSize)}
}

// reconcile applies the server's acknowledged high-water mark ack (the
// driver's bytesSent) against the buffered bytes, returning the byte offset
// within b.buf that the next send attempt should start from.
func (b *chunkBuffer) reconcile(ack int64) int {
	sentStart := b.startOffset
	sentLen := int64(b.usedLen)

	switch {
	case ack == sentStart+sentLen:
		// Previous chunk fully accepted. Compact and start fresh.
		b.startOffset = ack
		b.usedLen = 0

		return 0
	case ack > sentStart && ack < sentStart+sentLen:
		// Server accepted only a prefix. Shift the unacknowledged tail down to
		// buf[0:], so the next attempt resends the whole retained window from
		// the front rather than skipping the bytes already shifted into place.
		delta := ack - sentStart
		copy(b.buf, b.buf[delta:sentLen])
		b.startOffset = ack
		b.usedLen = int(sentLen - delta)

		return 0
	default:
		// ack == sentStart: nothing new acknowledged, resend from the start.
		return 0
	}
}

// fill consumes a cached look-ahead byte first, then reads from src until
// the buffer is full or a read returns zero bytes. Cancellation is checked
// between reads so a long fill on a slow source can still be aborted.
func (b *chunkBuffer) fill(ctx context.Context, src io.Reader) error {
	if b.hasLookAhead && b.usedLen < len(b.buf) {
		b.buf[b.usedLen] = b.lookAhead
		b.usedLen++
		b.hasLookAhead = false
	}

	for b.usedLen < len(b.buf) {
		if err := ctx.Err(); err != nil {
			return ErrCanceled
		}

		n, err := src.Read(b.buf[b.usedLen:])
		b.usedLen += n

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return err
		}

		if n == 0 {
			return nil
		}
	}

	return nil
}

// probeEOF determines whether the source is exhausted. Call after fill.
// When the buffer wasn't filled to capacity the source is already known to
// be at EOF. When it was filled exactly, a one-byte look-ahead read
// distinguishes "more data follows" from "this was the last chunk".
// Returns (total, totalKnown).
func (b *chunkBuffer) probeEOF(src io.Reader) (int64, bool, error) {
	if b.usedLen < len(b.buf) {
		b.sourceAtEOF = true
		b.knownTotalOnce = b.startOffset + int64(b.usedLen)

		return b.knownTotalOnce, true, nil
	}

	one := make([]byte, 1)

	n, err := src.Read(one)
	if n == 1 {
		b.lookAhead = one[0]
		b.hasLookAhead = true

		return 0, false, nil
	}

	if err != nil && err != io.EOF {
		return 0, false, err
	}

	// n == 0: stream exhausted exactly at the chunk boundary.
	b.sourceAtEOF = true
	b.knownTotalOnce = b.startOffset + int64(b.usedLen)

	return b.knownTotalOnce, true, nil
}

// window returns the bytes to send this attempt: buf[from:usedLen].
func (b *chunkBuffer) window(from int) []byte {
	return b.buf[from:b.usedLen]
}

// absoluteOffset returns the absolute source offset of buf[from].
func (b *chunkBuffer) absoluteOffset(from int) int64 {
	return b.startOffset + int64(from)
}
