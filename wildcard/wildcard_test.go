package wildcard_test

import (
	"testing"

	"github.com/arloliu/sonnerie/wildcard"
	"github.com/stretchr/testify/assert"
)

func TestLiteralPrefix(t *testing.T) {
	assert.Equal(t, []byte("abc"), wildcard.LiteralPrefix("abc%"))
	assert.Equal(t, []byte("abc"), wildcard.LiteralPrefix("abc"))
	assert.Equal(t, []byte(""), wildcard.LiteralPrefix("%abc"))
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "abcd", false},
		{"abc%", "abcdef", true},
		{"abc%", "ab", false},
		{"%abc", "xyzabc", true},
		{"%abc", "xyzabcd", false},
		{"a%c", "abc", true},
		{"a%c", "ac", true},
		{"a%c", "abbbbc", true},
		{"a%c", "abd", false},
		{"%%", "anything", true},
		{"a%b%c", "axbyc", true},
		{"a%b%c", "abc", true},
		{"a%b%c", "ac", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, wildcard.Match(c.pattern, []byte(c.key)), "pattern %q key %q", c.pattern, c.key)
	}
}
