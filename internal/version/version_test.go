package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	assert.True(t, strings.HasPrefix(ua, ApplicationName+"/"))
}

func TestShortWithoutCommit(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()
	Commit = "unknown"
	assert.Equal(t, Version, Short())
}

func TestShortWithCommit(t *testing.T) {
	oldCommit, oldVersion := Commit, Version
	defer func() { Commit, Version = oldCommit, oldVersion }()
	Commit = "deadbeefcafef00d"
	Version = "1.2.3"
	assert.Equal(t, "1.2.3 (deadbeef)", Short())
}
