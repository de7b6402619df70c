package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("disk full")
	err := Wrap(CodeDependency, cause, "flush order")

	require.Equal(t, CodeDependency, err.Code())
	require.ErrorIs(t, err, cause)
	require.Equal(t, "DEPENDENCY_ERROR: flush order", err.Error())
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeStateConflict, "insufficient stock")
	wrapped := fmt.Errorf("checkout: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	require.Equal(t, CodeStateConflict, typed.Code())

	require.Nil(t, As(fmt.Errorf("plain")))
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	require.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	details := map[string]any{"product_id": "abc"}
	err := New(CodeValidation, "bad quantity").WithDetails(details)
	require.Equal(t, details, err.Details())
}

func TestDumpCollectsChain(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeInternal, fmt.Errorf("root"), "top")
	dump := Dump(err)
	require.Equal(t, CodeInternal, dump.Code)
	require.Len(t, dump.Chain, 2)
}
