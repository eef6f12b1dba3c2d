package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassOfDefaults(t *testing.T) {
	assert.Equal(t, Warning, ClassOf(fmt.Errorf("line 3: %w", ErrFileGrammar)))
	assert.Equal(t, Error, ClassOf(ErrMissingColumn))
	assert.Equal(t, Error, ClassOf(ErrArchiveConflict))
	assert.Equal(t, Fatal, ClassOf(ErrParseFatal))
	assert.Equal(t, Fatal, ClassOf(errors.New("unclassified")))
}

func TestClassifiedErrorWrapsKind(t *testing.T) {
	err := New(Warning, ErrReferenceNotFound, "search", "find", "lab_id %q", "SUB1")
	assert.True(t, errors.Is(err, ErrReferenceNotFound))
	assert.Equal(t, `search.find: lab_id "SUB1": reference not found`, err.Error())
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrReferenceNotFound, KindOf(err))
}

func TestWrapFatal(t *testing.T) {
	err := WrapFatal(errors.New("eof"), "hall", "decode")
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrParseFatal))

	grammar := WrapFatal(fmt.Errorf("x: %w", ErrFileGrammar), "hall", "decode")
	assert.True(t, IsFatal(grammar))
	assert.Equal(t, ErrFileGrammar, KindOf(grammar))

	assert.Nil(t, WrapFatal(nil, "a", "b"))
	assert.Nil(t, Wrap(nil, "a", "b", "c"))
}

func TestKindNames(t *testing.T) {
	for _, k := range Kinds {
		assert.NotEqual(t, "Unknown", KindName(k))
	}
	assert.Equal(t, "Unknown", KindName(errors.New("x")))
	assert.Equal(t, "fatal", Fatal.String())
}

func TestAtLine(t *testing.T) {
	err := AtLine(Warnf(ErrFileGrammar, "hall", "decode", "bad %q", "x"), 12)
	assert.Equal(t, 12, LineOf(err))
	assert.ErrorIs(t, err, ErrFileGrammar)
	assert.Equal(t, Warning, ClassOf(err))
	assert.Nil(t, AtLine(nil, 3))
	assert.Equal(t, 0, LineOf(ErrFileGrammar))
	assert.Equal(t, Error, ClassOf(Errorf(ErrMissingColumn, "x", "y", "z")))
}
