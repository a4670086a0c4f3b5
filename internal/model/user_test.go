package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserFullName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	require.Equal(t, "Ada", User{FirstName: "Ada"}.FullName())
	require.Equal(t, "Lovelace", User{LastName: "Lovelace"}.FullName())
	require.Equal(t, "", User{}.FullName())
}

func TestUserContactType(t *testing.T) {
	require.Equal(t, "email", User{Email: "a@b.test"}.ContactType())
	require.Equal(t, "email", User{Email: "a@b.test", Phone: "123"}.ContactType())
	require.Equal(t, "phone", User{Phone: "123"}.ContactType())
}

func TestValidCategory(t *testing.T) {
	for _, c := range []string{CategorySkincare, CategoryHaircare, CategoryPerfumes} {
		require.True(t, ValidCategory(c))
	}
	require.False(t, ValidCategory(""))
	require.False(t, ValidCategory("gadgets"))
	require.False(t, ValidCategory("Skincare"))
}
