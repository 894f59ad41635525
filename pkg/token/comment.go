package token

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // -- comment
	BlockComment                    // /* comment */
)

// Comment is a SQL comment captured by the lexer. Text keeps its delimiters
// so the printer can emit it back verbatim.
type Comment struct {
	Kind CommentKind
	Text string
	Pos  Position
}
