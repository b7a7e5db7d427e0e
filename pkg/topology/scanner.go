package topology

import (
	"bufio"
	"io"
	"strings"
)

// line is one significant input line.
type line struct {
	num  int
	text string
}

// Scanner yields the significant lines of a lab description: blank lines
// and # comments are dropped, surrounding whitespace is trimmed.
type Scanner struct {
	sc   *bufio.Scanner
	num  int
	cur  line
	err  error
	done bool
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Scanner{sc: sc}
}

// Next advances to the next significant line. It returns false at end of
// input or on a read error (see Err).
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	for s.sc.Scan() {
		s.num++
		text := stripComment(s.sc.Text())
		if text == "" {
			continue
		}
		s.cur = line{num: s.num, text: text}
		return true
	}
	s.done = true
	s.err = s.sc.Err()
	return false
}

// Line returns the current line number and text.
func (s *Scanner) Line() (int, string) {
	return s.cur.num, s.cur.text
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error {
	return s.err
}

func stripComment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}
