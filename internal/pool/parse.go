package pool

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/pavelanni/examgen/internal/model"
)

// ParseResult holds the questions found in one pool source.
type ParseResult struct {
	Questions []string
	// DanglingLines counts the lines after the last end marker that never
	// formed a question. They are dropped.
	DanglingLines int
}

// Incomplete reports whether the source ended in the middle of a question.
func (r ParseResult) Incomplete() bool {
	return r.DanglingLines > 0
}

// Parse splits pool content into question blocks. Every block ends with a line
// that trims to the end marker; the marker line is kept in the block text.
// Blank lines are skipped until a block has content.
func Parse(r io.Reader) (ParseResult, error) {
	var (
		res ParseResult
		buf []string
	)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if !isBlank(line) || len(buf) > 0 {
				buf = append(buf, line)
			}
			if strings.TrimSpace(line) == model.QuestionEndMarker {
				res.Questions = append(res.Questions, strings.Join(buf, ""))
				buf = buf[:0]
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, err
		}
	}
	res.DanglingLines = len(buf)
	return res, nil
}

func isBlank(line string) bool {
	return line == "\n" || line == "\r\n"
}
