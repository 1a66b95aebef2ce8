package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsFirstClassification(t *testing.T) {
	inner := Auth("login", "login rejected", errors.New("boom"))
	outer := fmt.Errorf("cycle: %w", inner)

	got := Wrap(KindUnclassified, "cycle", "unexpected", outer)
	require.NotNil(t, got)
	assert.Equal(t, KindAuth, got.Kind)
	assert.True(t, IsKind(outer, KindAuth))
	assert.False(t, IsKind(outer, KindTransient))
	assert.Nil(t, Wrap(KindAuth, "x", "y", nil))
}

func TestPayloadOfWalksChain(t *testing.T) {
	base := New(KindAuth, "login", "status not OK").WithPayload([]byte(`{"status":"ERROR"}`))
	err := Wrap(KindUnclassified, "cycle", "failed", fmt.Errorf("wrapped: %w", base))

	assert.Equal(t, `{"status":"ERROR"}`, PayloadOf(err))
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, "", PayloadOf(errors.New("plain")))
}

func TestErrorString(t *testing.T) {
	e := New(KindConfig, "registry", "no accounts configured")
	assert.Equal(t, "[config:registry] no accounts configured", e.Error())

	e = Auth("entry", "xsrf cookie missing", errors.New("eof"))
	assert.Equal(t, "[auth:entry] xsrf cookie missing: eof", e.Error())
}
