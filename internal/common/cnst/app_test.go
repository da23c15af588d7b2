package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppConstants(t *testing.T) {
	assert.Equal(t, "boom", AppName)
	assert.Equal(t, "boom", CommandName)
	assert.Equal(t, "boom.yaml", BoomYaml)
	assert.Equal(t, "/", RootNamespace)
}
