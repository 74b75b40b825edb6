package errutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeNested(t *testing.T) {
	err := Scope(errSample, "build-rpms")
	err = Scope(err, "cloudify-manager")
	err = Scope(err, "repositories")

	assert.Equal(t, "repositories/cloudify-manager/build-rpms", AsScope(err))
	assert.ErrorIs(t, err, errSample)
	assert.Equal(t, errSample.Error(), err.Error())
}

func TestScopeKeepsInnerWrapping(t *testing.T) {
	inner := fmt.Errorf("outer: %w", Scope(errSample, "inner"))
	err := Scope(inner, "repositories")

	assert.Equal(t, "repositories", AsScope(err))
	assert.Equal(t, "outer: "+errSample.Error(), err.Error())
}

func TestScopeNil(t *testing.T) {
	assert.NoError(t, Scope(nil, "repositories"))
	assert.Equal(t, "", AsScope(errSample))
}

func TestScopeSlice(t *testing.T) {
	errs := ScopeSlice(Slice{Scope(errSample, "a"), errSample}, "root")
	assert.Equal(t, "root/a", AsScope(errs[0]))
	assert.Equal(t, "root", AsScope(errs[1]))
}
