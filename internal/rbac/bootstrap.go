package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/inventory-checkout/internal"
	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
)

// EnsureDefaults reconciles the default role table with storage inside a single
// transaction. Missing roles, permissions and links are created; nothing is
// removed or renamed. Running it repeatedly leaves the same rows behind.
func (s *Service) EnsureDefaults(ctx context.Context) (BootstrapReport, error) {
	var report BootstrapReport

	err := s.repo.WithinTransaction(ctx, func(tx RepositoryAPI) error {
		report = BootstrapReport{}
		perms := make(map[string]*rbacDatamodel.Permission)

		for _, def := range DefaultRoles() {
			role, created, err := findOrCreateRole(ctx, tx, def)
			if err != nil {
				return fmt.Errorf("role %q: %w", def.Name, err)
			}
			if created {
				report.RolesCreated++
			}

			linked, err := tx.PermissionsForRole(ctx, role.ID)
			if err != nil {
				return fmt.Errorf("permissions for role %q: %w", def.Name, err)
			}
			have := make(map[int64]struct{}, len(linked))
			for _, p := range linked {
				have[p.ID] = struct{}{}
			}

			for _, name := range def.Permissions {
				perm, ok := perms[name]
				if !ok {
					var created bool
					perm, created, err = findOrCreatePermission(ctx, tx, name)
					if err != nil {
						return fmt.Errorf("permission %q: %w", name, err)
					}
					if created {
						report.PermissionsCreated++
					}
					perms[name] = perm
				}

				if _, ok := have[perm.ID]; ok {
					continue
				}
				if err := tx.AssignPermission(ctx, role.ID, perm.ID); err != nil {
					return fmt.Errorf("link %q to %q: %w", name, def.Name, err)
				}
				have[perm.ID] = struct{}{}
				report.LinksCreated++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("default roles bootstrap failed", "error", err)
		return BootstrapReport{}, err
	}

	s.logger.Info("default roles reconciled",
		"roles_created", report.RolesCreated,
		"permissions_created", report.PermissionsCreated,
		"links_created", report.LinksCreated)
	return report, nil
}

func findOrCreateRole(ctx context.Context, tx RepositoryAPI, def RoleDefinition) (*rbacDatamodel.Role, bool, error) {
	role, err := tx.GetRoleByName(ctx, def.Name)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, internal.ErrRoleNotFound) {
		return nil, false, err
	}

	role = &rbacDatamodel.Role{Name: def.Name, Description: def.Description}
	if err := tx.CreateRole(ctx, role); err != nil {
		return nil, false, err
	}
	return role, true, nil
}

func findOrCreatePermission(ctx context.Context, tx RepositoryAPI, name string) (*rbacDatamodel.Permission, bool, error) {
	perm, err := tx.GetPermissionByName(ctx, name)
	if err == nil {
		return perm, false, nil
	}
	if !errors.Is(err, internal.ErrPermissionNotFound) {
		return nil, false, err
	}

	perm = &rbacDatamodel.Permission{Name: name, Description: describePermission(name)}
	if err := tx.CreatePermission(ctx, perm); err != nil {
		return nil, false, err
	}
	return perm, true, nil
}

func describePermission(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return fmt.Sprintf("Allows %s on %s", name[i+1:], name[:i])
		}
	}
	return name
}
