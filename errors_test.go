package usb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "not_supported", KindNotSupported.String())
	assert.Equal(t, "other", Kind(999).String())
}

func TestErrorFormatting(t *testing.T) {
	e := &Error{Op: "bulk_in", Kind: KindPipe}
	assert.Equal(t, "bulk_in: pipe", e.Error())

	e2 := &Error{Kind: KindTimeout}
	assert.Equal(t, "timeout", e2.Error())

	e3 := &Error{Op: "claim_interface", Message: "custom detail"}
	assert.Equal(t, "claim_interface: custom detail", e3.Error())
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := &Error{Op: "a", Kind: KindBusy}
	b := &Error{Op: "b", Kind: KindBusy}
	c := &Error{Op: "c", Kind: KindTimeout}

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOfUnwrapsThroughFmt(t *testing.T) {
	base := newErr("submit", KindNoMem, "out of transfers")
	wrapped := fmt.Errorf("open pipeline: %w", base)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNoMem, kind)
}

func TestKindOfForeignError(t *testing.T) {
	_, ok := KindOf(errors.New("not ours"))
	assert.False(t, ok)
}

func TestWrapErrPreservesCause(t *testing.T) {
	cause := errors.New("driver says no")
	e := wrapErr("open", KindAccess, cause)
	assert.Equal(t, cause, errors.Unwrap(e))
	assert.Equal(t, KindAccess, e.Kind)
}
