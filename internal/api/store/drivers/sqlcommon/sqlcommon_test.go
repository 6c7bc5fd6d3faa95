package sqlcommon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindDollar(t *testing.T) {
	require.Equal(t, "SELECT 1", BindDollar("SELECT 1"))
	require.Equal(t,
		"UPDATE users SET roles = $1, updated_at = $2 WHERE id = $3",
		BindDollar("UPDATE users SET roles = ?, updated_at = ? WHERE id = ?"),
	)
}

func TestSplitAndFilter(t *testing.T) {
	require.Nil(t, splitAndFilter("  "))
	require.Equal(t, []string{"user", "admin"}, splitAndFilter("user admin user"))
}
