package battle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"battlescope/pkg/dto"
)

func TestJoinWhereCombinesClausesWithAnd(t *testing.T) {
	require.Equal(t, "a=1", joinWhere([]string{"a=1"}))
	require.Equal(t, "a=1 AND b=2 AND c=3", joinWhere([]string{"a=1", "b=2", "c=3"}))
}

func TestPtrDtoNilStaysNil(t *testing.T) {
	require.Nil(t, ptrDto(nil))
}

func TestPtrDtoWrapsValue(t *testing.T) {
	v := uint64(99003581)
	got := ptrDto(&v)
	require.NotNil(t, got)
	require.Equal(t, dto.U64(99003581), *got)
}

func TestSliceDtoPreservesNilVsEmpty(t *testing.T) {
	require.Nil(t, sliceDto(nil))

	empty := sliceDto([]uint64{})
	require.NotNil(t, empty)
	require.Empty(t, empty)

	got := sliceDto([]uint64{1, 2, 3})
	require.Equal(t, []dto.U64{1, 2, 3}, got)
}
