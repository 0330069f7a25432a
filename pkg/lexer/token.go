package lexer

import "github.com/notimplife/cels-cc/pkg/diag"

// Kind identifies a token type. The set is closed; declaration order is
// the tie-breaking order of the tokenizer (earlier wins on equal match
// length), so keywords precede ID.
type Kind int

const (
	WS Kind = iota
	COMMENT

	// Literals
	LITERAL_BOOL
	LITERAL_DEC
	LITERAL_INT
	LITERAL_STR

	// Keywords
	KW_BEGIN
	KW_BOOL
	KW_BREAK
	KW_CONST
	KW_CONTINUE
	KW_CPP_INCLUDE
	KW_DO
	KW_ELSE
	KW_END
	KW_EXTERN
	KW_FI
	KW_FUNCTION
	KW_IF
	KW_IMPORT
	KW_INT
	KW_LAMBDA
	KW_MULTIFRAME
	KW_NOT
	KW_PACKAGE
	KW_RETURN
	KW_SCOPE
	KW_SHORT
	KW_STRING
	KW_STRUCT
	KW_SUSPEND
	KW_TASKREADY
	KW_TASKRESULT
	KW_TASKSTART
	KW_THEN
	KW_UINT
	KW_USHORT
	KW_VAR
	KW_VOID
	KW_WHILE

	// Punctuation
	S_RRARROW
	S_LRARROW
	S_DOUBLECOLON
	S_GTE
	S_EQEQ
	S_LTE
	S_NEQ
	S_AMPERSAND
	S_COLON
	S_COMMA
	S_DOT
	S_GT
	S_EQUAL
	S_LBRACK
	S_LPAREN
	S_LT
	S_MINUS
	S_PERCENT
	S_PLUS
	S_RBRACK
	S_RPAREN
	S_SEMICOLON
	S_SLASH
	S_STAR

	ID
)

var kindNames = map[Kind]string{
	WS:             "WS",
	COMMENT:        "COMMENT",
	LITERAL_BOOL:   "LITERAL_BOOL",
	LITERAL_DEC:    "LITERAL_DEC",
	LITERAL_INT:    "LITERAL_INT",
	LITERAL_STR:    "LITERAL_STR",
	KW_BEGIN:       "KW_BEGIN",
	KW_BOOL:        "KW_BOOL",
	KW_BREAK:       "KW_BREAK",
	KW_CONST:       "KW_CONST",
	KW_CONTINUE:    "KW_CONTINUE",
	KW_CPP_INCLUDE: "KW_CPP_INCLUDE",
	KW_DO:          "KW_DO",
	KW_ELSE:        "KW_ELSE",
	KW_END:         "KW_END",
	KW_EXTERN:      "KW_EXTERN",
	KW_FI:          "KW_FI",
	KW_FUNCTION:    "KW_FUNCTION",
	KW_IF:          "KW_IF",
	KW_IMPORT:      "KW_IMPORT",
	KW_INT:         "KW_INT",
	KW_LAMBDA:      "KW_LAMBDA",
	KW_MULTIFRAME:  "KW_MULTIFRAME",
	KW_NOT:         "KW_NOT",
	KW_PACKAGE:     "KW_PACKAGE",
	KW_RETURN:      "KW_RETURN",
	KW_SCOPE:       "KW_SCOPE",
	KW_SHORT:       "KW_SHORT",
	KW_STRING:      "KW_STRING",
	KW_STRUCT:      "KW_STRUCT",
	KW_SUSPEND:     "KW_SUSPEND",
	KW_TASKREADY:   "KW_TASKREADY",
	KW_TASKRESULT:  "KW_TASKRESULT",
	KW_TASKSTART:   "KW_TASKSTART",
	KW_THEN:        "KW_THEN",
	KW_UINT:        "KW_UINT",
	KW_USHORT:      "KW_USHORT",
	KW_VAR:         "KW_VAR",
	KW_VOID:        "KW_VOID",
	KW_WHILE:       "KW_WHILE",
	S_RRARROW:      "S_RRARROW",
	S_LRARROW:      "S_LRARROW",
	S_DOUBLECOLON:  "S_DOUBLECOLON",
	S_GTE:          "S_GTE",
	S_EQEQ:         "S_EQEQ",
	S_LTE:          "S_LTE",
	S_NEQ:          "S_NEQ",
	S_AMPERSAND:    "S_AMPERSAND",
	S_COLON:        "S_COLON",
	S_COMMA:        "S_COMMA",
	S_DOT:          "S_DOT",
	S_GT:           "S_GT",
	S_EQUAL:        "S_EQUAL",
	S_LBRACK:       "S_LBRACK",
	S_LPAREN:       "S_LPAREN",
	S_LT:           "S_LT",
	S_MINUS:        "S_MINUS",
	S_PERCENT:      "S_PERCENT",
	S_PLUS:         "S_PLUS",
	S_RBRACK:       "S_RBRACK",
	S_RPAREN:       "S_RPAREN",
	S_SEMICOLON:    "S_SEMICOLON",
	S_SLASH:        "S_SLASH",
	S_STAR:         "S_STAR",
	ID:             "ID",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// KindByName resolves a token-kind name. The LR(1) table loader uses it
// to decode persisted terminal columns.
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// IsLiteral reports whether k is a literal token kind.
func (k Kind) IsLiteral() bool { return k >= LITERAL_BOOL && k <= LITERAL_STR }

// IsKeyword reports whether k is a keyword token kind.
func (k Kind) IsKeyword() bool { return k >= KW_BEGIN && k <= KW_WHILE }

// Token is one lexical token with its source position.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    diag.Position
}

func (t Token) String() string {
	return "<" + t.Kind.String() + "@" + t.Pos.String() + " = " + t.Lexeme + ">"
}

// celsRules is the ordered Celesta token table.
var celsRules = []struct {
	kind    Kind
	pattern string
}{
	{WS, `( |\t|\n|\r)+`},
	{COMMENT, `/\*(([^*])|(\*[^/]))*\*/`},

	{LITERAL_BOOL, `(true)|(false)`},
	{LITERAL_DEC, `[0-9]+\.[0-9]*`},
	{LITERAL_INT, `[0-9]+`},
	{LITERAL_STR, `"([^\\"]|(\\"))*"`},

	{KW_BEGIN, `begin`},
	{KW_BOOL, `bool`},
	{KW_BREAK, `break`},
	{KW_CONST, `const`},
	{KW_CONTINUE, `continue`},
	{KW_CPP_INCLUDE, `cppinclude`},
	{KW_DO, `do`},
	{KW_ELSE, `else`},
	{KW_END, `end`},
	{KW_EXTERN, `extern`},
	{KW_FI, `fi`},
	{KW_FUNCTION, `function`},
	{KW_IF, `if`},
	{KW_IMPORT, `import`},
	{KW_INT, `int`},
	{KW_LAMBDA, `lambda`},
	{KW_MULTIFRAME, `multiframe`},
	{KW_NOT, `not`},
	{KW_PACKAGE, `package`},
	{KW_RETURN, `return`},
	{KW_SCOPE, `scope`},
	{KW_SHORT, `short`},
	{KW_STRING, `string`},
	{KW_STRUCT, `struct`},
	{KW_SUSPEND, `suspend`},
	{KW_TASKREADY, `taskready`},
	{KW_TASKRESULT, `taskresult`},
	{KW_TASKSTART, `taskstart`},
	{KW_THEN, `then`},
	{KW_UINT, `uint`},
	{KW_USHORT, `ushort`},
	{KW_VAR, `var`},
	{KW_VOID, `void`},
	{KW_WHILE, `while`},

	{S_RRARROW, `=>`},
	{S_LRARROW, `\->`},
	{S_DOUBLECOLON, `::`},
	{S_GTE, `>=`},
	{S_EQEQ, `==`},
	{S_LTE, `<=`},
	{S_NEQ, `!=`},
	{S_AMPERSAND, `\&`},
	{S_COLON, `:`},
	{S_COMMA, `,`},
	{S_DOT, `\.`},
	{S_GT, `>`},
	{S_EQUAL, `=`},
	{S_LBRACK, `\[`},
	{S_LPAREN, `\(`},
	{S_LT, `<`},
	{S_MINUS, `\-`},
	{S_PERCENT, `%`},
	{S_PLUS, `\+`},
	{S_RBRACK, `\]`},
	{S_RPAREN, `\)`},
	{S_SEMICOLON, `;`},
	{S_SLASH, `/`},
	{S_STAR, `\*`},

	{ID, `[_A-Za-z][_A-Za-z0-9]*`},
}
