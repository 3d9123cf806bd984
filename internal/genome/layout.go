package genome

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// layout locates one FASTA record on disk, in the manner of a samtools
// .fai entry.
type layout struct {
	name      string
	length    int
	offset    int64 // first base
	end       int64 // just past the last base
	lineBases int
	lineBytes int
}

// byteOffset returns the file position of base i.
func (l layout) byteOffset(i int) int64 {
	return l.offset + int64(i/l.lineBases)*int64(l.lineBytes) + int64(i%l.lineBases)
}

// chromosome is one genome sequence, either in memory (seq) or on disk
// (file and layout).
type chromosome struct {
	length int
	seq    string
	file   *os.File
	layout layout
}

// read returns the upper-cased bases [start, end). Bounds are checked by
// the caller.
func (c *chromosome) read(start, end int) (string, error) {
	if c.file == nil {
		return c.seq[start:end], nil
	}
	from := c.layout.byteOffset(start)
	to := min(c.layout.byteOffset(end), c.layout.end)
	buf := make([]byte, to-from)
	if _, err := c.file.ReadAt(buf, from); err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", c.layout.name, start, end, err)
	}
	out := buf[:0]
	for _, b := range buf {
		switch {
		case b == '\n' || b == '\r':
			continue
		case b >= 'a' && b <= 'z':
			b -= 'a' - 'A'
		}
		out = append(out, b)
	}
	if len(out) != end-start {
		return "", fmt.Errorf("read %s:%d-%d: got %d bases, file changed since it was indexed", c.layout.name, start, end, len(out))
	}
	return string(out), nil
}

// scanLayout records the position and line wrapping of every record in a
// plain FASTA stream. regular is false when some record is not wrapped at a
// fixed width (every line but the last of equal length and terminator),
// which byte offsets cannot address.
func scanLayout(r io.Reader) (layouts []layout, regular bool, err error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var cur *layout
	var pos int64
	ended := false // the current record had its short last line

	finish := func() {
		if cur != nil {
			layouts = append(layouts, *cur)
		}
	}

	for {
		head, bases, size, err := nextLine(br)
		if size == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, false, err
		}

		switch {
		case len(head) > 0 && head[0] == '>':
			finish()
			cur = &layout{name: parseHeaderName(head), offset: pos + int64(size), end: pos + int64(size)}
			ended = false
		case bases == 0:
			ended = cur != nil && cur.lineBases > 0
		case cur == nil:
			return nil, false, fmt.Errorf("sequence data before first FASTA header")
		default:
			if cur.lineBases == 0 {
				cur.lineBases, cur.lineBytes = bases, size
			} else if ended || bases > cur.lineBases ||
				(bases == cur.lineBases && size != cur.lineBytes) {
				return nil, false, nil
			}
			if bases < cur.lineBases {
				ended = true
			}
			cur.length += bases
			cur.end = pos + int64(bases)
		}
		pos += int64(size)
		if errors.Is(err, io.EOF) {
			break
		}
	}
	finish()
	return layouts, true, nil
}

// nextLine consumes one line of any length. It returns the line's first
// buffered bytes, its length without the line terminator and its length on
// disk.
func nextLine(br *bufio.Reader) (head []byte, bases, size int, err error) {
	var last2 [2]byte
	for {
		chunk, rerr := br.ReadSlice('\n')
		if head == nil && len(chunk) > 0 {
			head = bytes.Clone(chunk)
		}
		size += len(chunk)
		for _, b := range chunk[max(0, len(chunk)-2):] {
			last2[0], last2[1] = last2[1], b
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		err = rerr
		break
	}
	bases = size
	if bases > 0 && last2[1] == '\n' {
		bases--
		if bases > 0 && last2[0] == '\r' {
			bases--
		}
	}
	return head, bases, size, err
}

func parseHeaderName(head []byte) string {
	name := bytes.TrimSpace(bytes.TrimPrefix(head, []byte(">")))
	if i := bytes.IndexAny(name, " \t"); i != -1 {
		name = name[:i]
	}
	return string(name)
}
