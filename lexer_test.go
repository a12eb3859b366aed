package lsc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexSource(t *testing.T, src string) ([]Token, *Diagnostics) {
	t.Helper()
	diags := NewDiagnostics(false)
	toks := NewLexer(0, []byte(src), diags).Tokenize()
	return toks, diags
}

func lexemes(toks []Token) []string {
	var out []string
	for _, tok := range toks {
		if tok.Kind == TokNewline || tok.Kind == TokEOF {
			continue
		}
		out = append(out, tok.Lexeme)
	}
	return out
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	toks, diags := lexSource(t, "declare const x = foo")
	require.False(t, diags.HasErrors())

	assert.Equal(t, TokKeyword, toks[0].Kind)
	assert.Equal(t, "declare", toks[0].Lexeme)
	assert.Equal(t, TokKeyword, toks[1].Kind)
	assert.Equal(t, TokIdent, toks[2].Kind)
	assert.Equal(t, "x", toks[2].Lexeme)
	assert.Equal(t, TokOperator, toks[3].Kind)
	assert.Equal(t, TokIdent, toks[4].Kind)
	assert.Equal(t, TokEOF, toks[len(toks)-1].Kind)
}

func TestLexerGreedyOperators(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"a **= b", []string{"a", "**=", "b"}},
		{"a ** b", []string{"a", "**", "b"}},
		{"a++", []string{"a", "++"}},
		{"a += b", []string{"a", "+=", "b"}},
		{"a <= b", []string{"a", "<=", "b"}},
		{"0..10", []string{"0", "..", "10"}},
		{"a == b", []string{"a", "==", "b"}},
		{"a = b", []string{"a", "=", "b"}},
	}
	for _, tt := range tests {
		toks, diags := lexSource(t, tt.src)
		require.False(t, diags.HasErrors(), tt.src)
		assert.Equal(t, tt.want, lexemes(toks), tt.src)
	}
}

func TestLexerNumbers(t *testing.T) {
	toks, diags := lexSource(t, "42 3.5 1e3")
	require.False(t, diags.HasErrors())

	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, int64(42), toks[0].IntVal)
	assert.Equal(t, TokFloat, toks[1].Kind)
	assert.InDelta(t, 3.5, toks[1].FltVal, 1e-9)
	assert.Equal(t, TokFloat, toks[2].Kind)
	assert.InDelta(t, 1000.0, toks[2].FltVal, 1e-9)
}

func TestLexerRangeAfterInt(t *testing.T) {
	// `0..5` must not lex `0.` as a float prefix.
	toks, diags := lexSource(t, "0..5")
	require.False(t, diags.HasErrors())
	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, "..", toks[1].Lexeme)
	assert.Equal(t, TokInt, toks[2].Kind)
}

func TestLexerStringEscapes(t *testing.T) {
	toks, diags := lexSource(t, `"a\n\t\"b\\"`)
	require.False(t, diags.HasErrors())
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, "a\n\t\"b\\", toks[0].StrVal)
}

func TestLexerUnterminatedString(t *testing.T) {
	_, diags := lexSource(t, `"oops`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "LexicalError", diags.Items()[0].Kind)
}

func TestLexerInvalidEscape(t *testing.T) {
	_, diags := lexSource(t, `"\q"`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "LexicalError", diags.Items()[0].Kind)
}

func TestLexerNonASCIIOutsideString(t *testing.T) {
	_, diags := lexSource(t, "declare \xc3\xa9 = 1")
	require.True(t, diags.HasErrors())
	assert.Equal(t, "LexicalError", diags.Items()[0].Kind)
}

func TestLexerNonASCIIInsideStringAllowed(t *testing.T) {
	toks, diags := lexSource(t, "\"caf\xc3\xa9\"")
	require.False(t, diags.HasErrors())
	assert.Equal(t, TokString, toks[0].Kind)
}

func TestLexerMarkers(t *testing.T) {
	toks, diags := lexSource(t, ".format().stateSpeed()")
	require.False(t, diags.HasErrors())
	assert.Equal(t, TokMarker, toks[0].Kind)
	assert.Equal(t, "format", toks[0].Lexeme)
	assert.Equal(t, TokMarker, toks[3].Kind)
	assert.Equal(t, "stateSpeed", toks[3].Lexeme)
}

func TestLexerCommentsAndNewlines(t *testing.T) {
	toks, diags := lexSource(t, "a // trailing comment\nb")
	require.False(t, diags.HasErrors())
	assert.Equal(t, TokIdent, toks[0].Kind)
	assert.Equal(t, TokNewline, toks[1].Kind)
	assert.Equal(t, TokIdent, toks[2].Kind)
	assert.Equal(t, int32(2), toks[2].Span.Start.Line)
}

func TestLexerSourceCoordinates(t *testing.T) {
	toks, diags := lexSource(t, "ab\n  cd")
	require.False(t, diags.HasErrors())
	assert.Equal(t, int32(1), toks[0].Span.Start.Line)
	assert.Equal(t, int32(1), toks[0].Span.Start.Column)
	assert.Equal(t, int32(2), toks[2].Span.Start.Line)
	assert.Equal(t, int32(3), toks[2].Span.Start.Column)
}
