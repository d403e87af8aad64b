package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByMultipleDelimiters(t *testing.T) {
	delimiters := []string{",", ";"}
	assert.Equal(t, []string{"a", "b", "c"}, SplitByMultipleDelimiters("a,b;c", delimiters...))
	assert.Equal(t, []string{"a", "b=c"}, SplitByMultipleDelimiters("a,b=c", delimiters...))
	assert.Equal(t, []string{"a"}, SplitByMultipleDelimiters("a", delimiters...))
	assert.Equal(t, []string{"a,b"}, SplitByMultipleDelimiters("a,b"))
}

func TestCloneStringMap(t *testing.T) {
	src := map[string]string{"/a": "one"}
	cp := CloneStringMap(src)
	cp["/b"] = "two"
	assert.Len(t, src, 1)
	assert.Equal(t, "one", cp["/a"])

	assert.NotNil(t, CloneStringMap(nil))
	assert.Empty(t, CloneStringMap(nil))
}
