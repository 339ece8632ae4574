package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeValid(t *testing.T) {
	assert.True(t, ModeQuick.Valid())
	assert.True(t, ModeStandard.Valid())
	assert.True(t, ModeDeep.Valid())
	assert.False(t, Mode("bogus").Valid())
	assert.False(t, Mode("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
