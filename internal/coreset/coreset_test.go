package coreset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid core string", func(t *testing.T) {
		cores, err := Parse("0-2-4")
		require.NoError(t, err)
		require.Equal(t, CoreSet{0, 2, 4}, cores)
	})

	t.Run("duplicates are removed and sorted", func(t *testing.T) {
		cores, err := Parse("0-0-1-2-1")
		require.NoError(t, err)
		require.Equal(t, CoreSet{0, 1, 2}, cores)
	})

	t.Run("unsorted input", func(t *testing.T) {
		cores, err := Parse("7-3-5")
		require.NoError(t, err)
		require.Equal(t, CoreSet{3, 5, 7}, cores)
	})

	t.Run("single core", func(t *testing.T) {
		cores, err := Parse("3")
		require.NoError(t, err)
		require.Equal(t, CoreSet{3}, cores)
	})

	for _, spec := range []string{"", "   ", "a-b-c", "0--2", "-1", "1-x", "1.5"} {
		t.Run("rejects "+spec, func(t *testing.T) {
			cores, err := Parse(spec)
			require.ErrorIs(t, err, ErrParse)
			require.Nil(t, cores)
		})
	}
}

func TestValidate(t *testing.T) {
	cores, err := Validate(CoreSet{0, 2, 4, 7}, 8)
	require.NoError(t, err)
	require.Equal(t, CoreSet{0, 2, 4, 7}, cores)

	_, err = Validate(CoreSet{0, 2, 4, 7}, 4)
	require.ErrorIs(t, err, ErrValidation)

	_, err = Validate(CoreSet{0, -1, 2}, 8)
	require.ErrorIs(t, err, ErrValidation)

	_, err = Validate(CoreSet{8}, 8)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDefault(t *testing.T) {
	tests := []struct {
		total int
		want  CoreSet
	}{
		{total: 1, want: CoreSet{0}},
		{total: 2, want: CoreSet{0}},
		{total: 4, want: CoreSet{0}},
		{total: 5, want: CoreSet{0, 1}},
		{total: 8, want: CoreSet{0, 1}},
		{total: 9, want: CoreSet{0, 1}},
		{total: 12, want: CoreSet{0, 1, 2}},
		{total: 16, want: CoreSet{0, 1, 2, 3}},
		{total: 24, want: CoreSet{0, 1, 2, 3}},
		{total: 128, want: CoreSet{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Default(tt.total), "total=%d", tt.total)
	}
}

func TestComplement(t *testing.T) {
	require.Equal(t, CoreSet{2, 3}, CoreSet{0, 1}.Complement(4))
	require.Equal(t, CoreSet{1, 3}, CoreSet{0, 2}.Complement(4))
	require.Empty(t, CoreSet{0, 1, 2, 3}.Complement(4))
	require.Equal(t, CoreSet{0, 1}, CoreSet{}.Complement(2))
}

func TestSetRelations(t *testing.T) {
	main := CoreSet{0, 1}

	require.True(t, CoreSet{0}.SubsetOf(main))
	require.True(t, CoreSet{0, 1}.SubsetOf(main))
	require.False(t, CoreSet{0, 2}.SubsetOf(main))
	require.True(t, CoreSet{}.SubsetOf(main))

	require.True(t, main.Equal(CoreSet{0, 1}))
	require.False(t, main.Equal(CoreSet{0}))
	require.False(t, main.Equal(CoreSet{0, 2}))

	require.True(t, main.Contains(1))
	require.False(t, main.Contains(2))
}

func TestNormalize(t *testing.T) {
	raw := []int{3, 1, 1, 2}
	require.Equal(t, CoreSet{1, 2, 3}, Normalize(raw))
	require.Equal(t, []int{3, 1, 1, 2}, raw, "input must not be modified")
}

func TestFormat(t *testing.T) {
	require.Equal(t, "", CoreSet{}.Format())
	require.Equal(t, "0", CoreSet{0}.Format())
	require.Equal(t, "0-3", CoreSet{0, 1, 2, 3}.Format())
	require.Equal(t, "0-1,4,6-7", CoreSet{0, 1, 4, 6, 7}.Format())
	require.Equal(t, "[0 2 4]", CoreSet{0, 2, 4}.String())
}

func TestOnlineSubsets(t *testing.T) {
	online := CoreSet{0, 1, 2, 5}

	cores, err := ValidateWithin(CoreSet{0, 5}, online)
	require.NoError(t, err)
	require.Equal(t, CoreSet{0, 5}, cores)

	_, err = ValidateWithin(CoreSet{3}, online)
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, CoreSet{1, 2, 5}, online.Difference(CoreSet{0}))
	require.Equal(t, CoreSet{0, 5}, online.Pick(CoreSet{0, 3, 9}))
}
