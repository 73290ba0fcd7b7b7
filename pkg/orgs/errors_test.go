package orgs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := newError(KindConflict, "slug %q already exists", "acme")
	assert.Equal(t, `slug "acme" already exists`, err.Error())
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer context: %w", newError(KindExpired, "invitation has expired"))
	assert.True(t, IsExpired(err))

	kind, ok := kindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindExpired, kind)
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := kindOf(errors.New("boom"))
	assert.False(t, ok)
	assert.False(t, IsValidation(errors.New("boom")))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "forbidden", KindForbidden.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "expired", KindExpired.String())
}
