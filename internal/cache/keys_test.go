package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyGrammar(t *testing.T) {
	assert.Equal(t, "docs:all", AllDocsKey)
	assert.Equal(t, "docs:department:7", DepartmentKey(7))
	assert.Equal(t, "docs:access:7", AccessKey(7))
}

func TestInvalidationKeys(t *testing.T) {
	t.Run("Covers All Affected Keys", func(t *testing.T) {
		keys := InvalidationKeys([]int64{1, 2})
		assert.Equal(t, []string{
			"docs:all",
			"docs:department:1", "docs:access:1",
			"docs:department:2", "docs:access:2",
		}, keys)
	})

	t.Run("No Departments Still Invalidates All", func(t *testing.T) {
		assert.Equal(t, []string{"docs:all"}, InvalidationKeys(nil))
	})
}
