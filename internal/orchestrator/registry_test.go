package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotwatch/internal/apperr"
	"slotwatch/internal/portal"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry([]portal.Credentials{
		{PSN: "111", Phone: "98123456"},
		{PSN: " 222 ", Phone: "77000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, "111_98123456", reg.Identity(0))
	assert.Equal(t, "222_77000001", reg.Identity(1))
	assert.Equal(t, "#2 (***001)", reg.Label(1))
	assert.Equal(t, 1, reg.Get(1).Index)
}

func TestNewRegistryRejects(t *testing.T) {
	_, err := NewRegistry(nil)
	require.ErrorIs(t, err, ErrNoAccounts)
	assert.True(t, apperr.IsKind(err, apperr.KindConfig))

	_, err = NewRegistry([]portal.Credentials{{PSN: "1"}})
	assert.True(t, apperr.IsKind(err, apperr.KindConfig))

	_, err = NewRegistry([]portal.Credentials{{PSN: "1", Phone: "2"}, {PSN: "1", Phone: "2"}})
	assert.Error(t, err)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "***456", MaskPhone("98123456"))
	assert.Equal(t, "***", MaskPhone("12"))
}
