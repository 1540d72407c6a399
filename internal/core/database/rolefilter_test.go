package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaops/nova-control/internal/models"
)

var profileCols = FilterColumns{
	Admin:      "assigned_admin_id",
	Translator: "assigned_translator_id",
}

func TestBuildRoleFilter_Director(t *testing.T) {
	frag, args := BuildRoleFilter(&models.User{ID: 1, Role: models.RoleDirector}, profileCols, 0)
	assert.Empty(t, frag)
	assert.Nil(t, args)
}

func TestBuildRoleFilter_Admin(t *testing.T) {
	frag, args := BuildRoleFilter(&models.User{ID: 7, Role: models.RoleAdmin}, profileCols, 0)
	assert.Equal(t,
		"(assigned_admin_id = $1 OR assigned_translator_id IN (SELECT id FROM users WHERE owner_id = $1))",
		frag)
	require.Len(t, args, 1)
	assert.Equal(t, int64(7), args[0])
}

func TestBuildRoleFilter_Translator(t *testing.T) {
	frag, args := BuildRoleFilter(&models.User{ID: 9, Role: models.RoleTranslator}, profileCols, 0)
	assert.Equal(t, "assigned_translator_id = $1", frag)
	require.Len(t, args, 1)
	assert.Equal(t, int64(9), args[0])
}

func TestBuildRoleFilter_ArgOffset(t *testing.T) {
	frag, args := BuildRoleFilter(&models.User{ID: 3, Role: models.RoleTranslator}, profileCols, 2)
	assert.Equal(t, "assigned_translator_id = $3", frag)
	assert.Equal(t, []any{int64(3)}, args)
}

// The viewer id must only ever travel as a bind parameter, never be spliced
// into the SQL text.
func TestBuildRoleFilter_Parameterized(t *testing.T) {
	viewer := &models.User{ID: 1337, Role: models.RoleAdmin}
	frag, args := BuildRoleFilter(viewer, profileCols, 0)
	assert.False(t, strings.Contains(frag, "1337"))
	assert.Contains(t, args, int64(1337))
}
