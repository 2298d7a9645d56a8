package elmo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	for value, expected := range map[string][]int{
		"1":            {1},
		"1,2,3":        {1, 2, 3},
		"1-3":          {1, 2, 3},
		"3-1":          {1, 2, 3},
		"1, 2-4, 4, 5": {1, 2, 3, 4, 5},
		"1;2":          {1, 2},
		"1 , 3-5":      {1, 3, 4, 5},
		"5, 1,":        {1, 5},
	} {
		t.Run(value, func(t *testing.T) {
			got, err := ParseSelection(value, 64)
			require.NoError(t, err)
			require.Equal(t, expected, got)
		})
	}

	for _, value := range []string{"", "   ", "0", "65", "1, abc", "1, 2-100", "-1", "1-", "-2--1", ",;"} {
		t.Run("invalid "+value, func(t *testing.T) {
			_, err := ParseSelection(value, 64)
			require.ErrorIs(t, err, ErrInvalidSelection)
		})
	}
}

func TestFormatSelection(t *testing.T) {
	for expected, values := range map[string][]int{
		"":            nil,
		"1":           {1},
		"1-3":         {1, 2, 3},
		"1, 3-4, 6-8": {1, 3, 4, 6, 7, 8},
		"1-5":         {5, 2, 3, 4, 1},
		"2, 9":        {9, 2, 2},
	} {
		t.Run(expected, func(t *testing.T) {
			require.Equal(t, expected, FormatSelection(values))
		})
	}

	t.Run("round trip", func(t *testing.T) {
		values := []int{1, 2, 3, 7, 10, 11}
		got, err := ParseSelection(FormatSelection(values), 64)
		require.NoError(t, err)
		require.Equal(t, values, got)
	})
}

func TestNormalizeSelection(t *testing.T) {
	require.Equal(t, []int{2, 3, 5}, NormalizeSelection([]int{5, 3, 3, 2}, 5))
	require.Equal(t, []int{1}, NormalizeSelection([]int{0, 1, 6}, 5))
	require.Empty(t, NormalizeSelection(nil, 5))
}

func TestFirstN(t *testing.T) {
	require.Equal(t, []int{1, 2, 3, 4, 5}, FirstN(5, 10))
	require.Equal(t, []int{1, 2}, FirstN(5, 2))
	require.Equal(t, []int{1}, FirstN(0, 10))
}
