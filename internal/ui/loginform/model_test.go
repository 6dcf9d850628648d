package loginform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormWidthClampsToUsableRange(t *testing.T) {
	assert.Equal(t, 40, New(10, 24).formWidth(), "narrow terminals get the minimum width")
	assert.Equal(t, 76, New(80, 24).formWidth())
	assert.Equal(t, 100, New(300, 24).formWidth(), "wide terminals are capped")
}

func TestFormHeightHasFloor(t *testing.T) {
	assert.Equal(t, 10, New(80, 5).formHeight())
	assert.Equal(t, 20, New(80, 24).formHeight())
}
