package argsfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak/internal/argsfile"
)

func TestParseSimpleArgs(t *testing.T) {
	args, err := argsfile.Parse("u4pak", []byte("check archive.pak"))
	require.NoError(t, err)
	require.Equal(t, []string{"u4pak", "check", "archive.pak"}, args)
}

func TestParseQuotedArgWithSpaces(t *testing.T) {
	args, err := argsfile.Parse("u4pak", []byte(`list "My Archive.pak"`))
	require.NoError(t, err)
	require.Equal(t, []string{"u4pak", "list", "My Archive.pak"}, args)
}

func TestParseComment(t *testing.T) {
	args, err := argsfile.Parse("u4pak", []byte("check # trailing comment\narchive.pak"))
	require.NoError(t, err)
	require.Equal(t, []string{"u4pak", "check", "archive.pak"}, args)
}

func TestParseEmbeddedQuoteScenario(t *testing.T) {
	// a "b c" # comment
	// "q""q"
	src := "a \"b c\" # comment\n\"q\"\"q\""
	args, err := argsfile.Parse("u4pak", []byte(src))
	require.NoError(t, err)
	require.Equal(t, []string{"u4pak", "a", "b c", `q"q`}, args)
}

func TestParseUnterminatedQuoteFails(t *testing.T) {
	_, err := argsfile.Parse("u4pak", []byte(`check "unterminated`))
	require.Error(t, err)
	var perr *argsfile.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Line)
}

func TestParseEmptySource(t *testing.T) {
	args, err := argsfile.Parse("u4pak", []byte(""))
	require.NoError(t, err)
	require.Equal(t, []string{"u4pak"}, args)
}
