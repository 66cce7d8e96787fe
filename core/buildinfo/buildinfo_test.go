package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "v1.0.0", "abc1234", ""
	assert.Equal(t, "v1.0.0 (abc1234)", String())

	Date = "2025-08-30T12:00:00Z"
	assert.Equal(t, "v1.0.0 (abc1234, built 2025-08-30T12:00:00Z)", String())
}
