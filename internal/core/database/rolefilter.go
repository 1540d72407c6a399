package db

import (
	"fmt"

	"github.com/novaops/nova-control/internal/models"
)

// FilterColumns names the admin/translator columns of the table a role filter
// is composed against.
type FilterColumns struct {
	Admin      string
	Translator string
}

// BuildRoleFilter returns a parameterized WHERE fragment restricting rows to
// what the viewer may see: directors see everything (empty fragment), admins
// see their own rows plus rows of translators they own, translators see only
// their own. The fragment starts numbering placeholders at argOffset+1 so it
// can be appended to an existing parameter list.
func BuildRoleFilter(viewer *models.User, cols FilterColumns, argOffset int) (string, []any) {
	if viewer == nil || viewer.Role == models.RoleDirector {
		return "", nil
	}
	n := argOffset + 1
	switch viewer.Role {
	case models.RoleAdmin:
		frag := fmt.Sprintf(
			"(%s = $%d OR %s IN (SELECT id FROM users WHERE owner_id = $%d))",
			cols.Admin, n, cols.Translator, n,
		)
		return frag, []any{viewer.ID}
	default: // translator
		return fmt.Sprintf("%s = $%d", cols.Translator, n), []any{viewer.ID}
	}
}
