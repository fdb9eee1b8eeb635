package script

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser turns script text into a File. A Parser may be reused and is safe
// for concurrent use.
type Parser struct {
	grammar *participle.Parser[File]
}

// NewParser builds the script grammar. It only fails if the grammar itself
// is malformed.
func NewParser() (*Parser, error) {
	grammar, err := participle.Build[File](
		participle.Lexer(Lexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("script grammar: %w", err)
	}
	return &Parser{grammar: grammar}, nil
}

// Parse reads a whole script from r. Statement positions carry name, so
// errors from Compile and Run point back at the source.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayName(name), err)
	}
	return p.parseBytes(name, src)
}

// ParseString parses an unnamed script, as built by the command line tools.
func (p *Parser) ParseString(input string) (*File, error) {
	return p.parseBytes("", []byte(input))
}

// ParseFile parses the script stored at path.
func (p *Parser) ParseFile(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return p.parseBytes(path, src)
}

func (p *Parser) parseBytes(name string, src []byte) (*File, error) {
	f, err := p.grammar.ParseBytes(name, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return f, nil
}

func displayName(name string) string {
	if name == "" {
		return "script"
	}
	return name
}
