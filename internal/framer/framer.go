// ABOUTME: Incremental decoder that turns arbitrary byte chunks into lines.
// ABOUTME: Carries a partial-line buffer so chunk boundaries never split frames.

package framer

import "bytes"

// LineBuffer accumulates stream chunks and emits complete lines.
//
// Chunks may cut a logical line anywhere, including in the middle of a
// multi-byte UTF-8 sequence. Splitting happens on the raw 0x0A byte, which
// never appears inside a UTF-8 continuation, and bytes are only converted
// to strings once a full line is assembled, so split runes reassemble
// correctly. For any partition of a byte sequence into chunks, the emitted
// lines are identical to feeding the sequence as a single chunk.
type LineBuffer struct {
	pending []byte
}

// Append adds a chunk and returns the complete lines it finishes, in
// order. The final piece after the last newline (possibly empty) is kept
// as the new pending buffer.
func (b *LineBuffer) Append(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	b.pending = append(b.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(b.pending[:i]))
		b.pending = b.pending[i+1:]
	}
	return lines
}

// Flush returns the pending partial line, if any, and resets the buffer.
// Called once at end of stream so a producer that died mid-frame still
// has its last unterminated line seen.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.pending) == 0 {
		return "", false
	}
	line := string(b.pending)
	b.pending = nil
	return line, true
}

// Len reports the number of buffered bytes awaiting a newline.
func (b *LineBuffer) Len() int {
	return len(b.pending)
}
