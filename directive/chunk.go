package directive

import (
	"strings"

	"github.com/shibukawa/sqlasm/tokenizer"
)

// Include is one actionable <<include:...>> marker.
type Include struct {
	Path   string
	Line   int
	Column int

	// Newline is true when the marker stood on its own line; the line break
	// after it was removed together with the marker.
	Newline bool
}

// Piece is either a run of source text or an include marker.
type Piece struct {
	Text    string
	Include *Include
}

// Chunk is a region of statement text with its include markers cut out.
type Chunk struct {
	Pieces []Piece
	// Words are the identifiers the region references as relations.
	Words []string
	// HasCode is true when the region holds anything besides whitespace,
	// comments and include markers.
	HasCode bool
}

// Includes returns the include markers in textual order.
func (c Chunk) Includes() []*Include {
	var result []*Include

	for _, p := range c.Pieces {
		if p.Include != nil {
			result = append(result, p.Include)
		}
	}

	return result
}

// Text returns the chunk text with include markers removed.
func (c Chunk) Text() string {
	var b strings.Builder

	for _, p := range c.Pieces {
		b.WriteString(p.Text)
	}

	return b.String()
}

// Render returns the chunk text, calling expand for every include marker.
func (c Chunk) Render(expand func(*Include) (string, error)) (string, error) {
	var b strings.Builder

	for _, p := range c.Pieces {
		if p.Include == nil {
			b.WriteString(p.Text)
			continue
		}

		text, err := expand(p.Include)
		if err != nil {
			return "", err
		}

		b.WriteString(text)
	}

	return b.String(), nil
}

// chunkBuilder accumulates tokens into a Chunk. Include markers and
// comments that carry inert markers are removed together with the
// indentation before them and the line break after them.
type chunkBuilder struct {
	pieces   []Piece
	buf      []byte
	words    []string
	hasCode  bool
	trimNext *Include // marker waiting for its trailing line break
	trimLine bool
}

func (b *chunkBuilder) prefix(text string) {
	b.buf = append(b.buf, text...)
}

func (b *chunkBuilder) add(token tokenizer.Token, reference bool) {
	switch {
	case token.Type == tokenizer.INCLUDE_DIRECTIVE:
		include := &Include{Path: token.Name, Line: token.Position.Line, Column: token.Position.Column}
		atLineStart := b.cut()
		b.flush()
		b.pieces = append(b.pieces, Piece{Include: include})
		b.trimNext = include
		b.trimLine = atLineStart

		return
	case token.IsComment() && strings.Contains(token.Value, "<<include:"):
		atLineStart := b.cut()
		b.trimNext = nil
		b.trimLine = atLineStart

		return
	}

	value := token.Value
	if b.trimLine && token.Type == tokenizer.WHITESPACE {
		rest := strings.TrimLeft(value, " \t")
		if strings.HasPrefix(rest, "\r\n") {
			value = rest[2:]
		} else if strings.HasPrefix(rest, "\n") {
			value = rest[1:]
		}

		if value != token.Value && b.trimNext != nil {
			b.trimNext.Newline = true
		}
	}

	b.trimNext = nil
	b.trimLine = false

	b.buf = append(b.buf, value...)

	if !token.IsTrivia() {
		b.hasCode = true
	}

	if reference {
		b.words = append(b.words, token.Identifier())
	}
}

// cut removes indentation before a removed marker and reports whether the
// marker started its line.
func (b *chunkBuilder) cut() bool {
	end := len(b.buf)
	for end > 0 && (b.buf[end-1] == ' ' || b.buf[end-1] == '\t') {
		end--
	}

	atLineStart := end == 0 || b.buf[end-1] == '\n'
	if atLineStart {
		b.buf = b.buf[:end]
	}

	return atLineStart
}

func (b *chunkBuilder) flush() {
	if len(b.buf) > 0 {
		b.pieces = append(b.pieces, Piece{Text: string(b.buf)})
		b.buf = b.buf[:0]
	}
}

func (b *chunkBuilder) chunk() Chunk {
	b.flush()

	return Chunk{Pieces: b.pieces, Words: b.words, HasCode: b.hasCode}
}
