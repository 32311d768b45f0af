package rbac_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/inventory-checkout/internal"
	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage/sqlitetest"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	rbacPostgres "github.com/frahmantamala/inventory-checkout/internal/rbac/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

var _ = Describe("RBAC Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		repo    rbac.RepositoryAPI
		service *rbac.Service
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = sqlitetest.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = rbacPostgres.NewRBACRepository(db)
		service = rbac.NewService(repo, quietLogger())
		_, err = service.EnsureDefaults(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("roles", func() {
		It("creates a role with initial permissions", func() {
			read, err := repo.GetPermissionByName(ctx, rbac.PermInventoryRead)
			Expect(err).NotTo(HaveOccurred())

			role, err := service.CreateRole(ctx, rbac.CreateRoleDTO{
				Name:          "  Auditor ",
				Description:   "read only",
				PermissionIDs: []int64{read.ID, read.ID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(role.Name).To(Equal("Auditor"))
			Expect(role.PermissionNames()).To(Equal([]string{rbac.PermInventoryRead}))
		})

		It("rejects a duplicate role name with Conflict", func() {
			_, err := service.CreateRole(ctx, rbac.CreateRoleDTO{Name: rbac.RoleCashier})
			Expect(errors.Is(err, internal.ErrRoleNameTaken)).To(BeTrue())
		})

		It("does not leave a half-created role behind when a permission is unknown", func() {
			_, err := service.CreateRole(ctx, rbac.CreateRoleDTO{Name: "Ghost", PermissionIDs: []int64{9999}})
			Expect(errors.Is(err, internal.ErrPermissionNotFound)).To(BeTrue())

			_, err = service.GetRoleByName(ctx, "Ghost")
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
		})

		It("updates name and description", func() {
			cashier, err := service.GetRoleByName(ctx, rbac.RoleCashier)
			Expect(err).NotTo(HaveOccurred())

			updated, err := service.UpdateRole(ctx, cashier.ID, rbac.UpdateRoleDTO{Name: strPtr("Front Desk"), Description: strPtr("till")})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("Front Desk"))
			Expect(updated.Description).To(Equal("till"))
			Expect(updated.PermissionNames()).To(ConsistOf(rbac.PermInventoryRead, rbac.PermCheckoutProcess))
		})

		It("protects the Super Admin role", func() {
			admin, err := service.GetRoleByName(ctx, rbac.RoleSuperAdmin)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdateRole(ctx, admin.ID, rbac.UpdateRoleDTO{Name: strPtr("Root")})
			Expect(errors.Is(err, internal.ErrProtectedRole)).To(BeTrue())

			Expect(errors.Is(service.DeleteRole(ctx, admin.ID), internal.ErrProtectedRole)).To(BeTrue())

			_, err = service.RevokePermission(ctx, admin.ID, admin.Permissions[0].ID)
			Expect(errors.Is(err, internal.ErrProtectedRole)).To(BeTrue())

			_, err = service.UpdateRole(ctx, admin.ID, rbac.UpdateRoleDTO{Description: strPtr("everything")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses to delete a role that users still hold", func() {
			cashier, err := service.GetRoleByName(ctx, rbac.RoleCashier)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Create(&userDatamodel.User{FullName: "C", Email: "c@x.io", PasswordHash: "h", RoleID: cashier.ID}).Error).To(Succeed())

			Expect(errors.Is(service.DeleteRole(ctx, cashier.ID), internal.ErrRoleInUse)).To(BeTrue())
		})

		It("deletes an unused role with its links", func() {
			manager, err := service.GetRoleByName(ctx, rbac.RoleInventoryManager)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteRole(ctx, manager.ID)).To(Succeed())
			_, err = service.GetRole(ctx, manager.ID)
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
		})

		It("reports NotFound for unknown roles", func() {
			_, err := service.GetRole(ctx, 4242)
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())
			Expect(errors.Is(service.DeleteRole(ctx, 4242), internal.ErrRoleNotFound)).To(BeTrue())
		})
	})

	Describe("assignments", func() {
		var cashier *rbac.Role

		BeforeEach(func() {
			var err error
			cashier, err = service.GetRoleByName(ctx, rbac.RoleCashier)
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns a permission and reflects it immediately", func() {
			perm, err := repo.GetPermissionByName(ctx, rbac.PermInventoryUpdate)
			Expect(err).NotTo(HaveOccurred())

			role, err := service.AssignPermission(ctx, cashier.ID, perm.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(role.HasAll(rbac.PermInventoryUpdate, rbac.PermCheckoutProcess)).To(BeTrue())
		})

		It("rejects a duplicate link with Conflict", func() {
			perm, err := repo.GetPermissionByName(ctx, rbac.PermCheckoutProcess)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.AssignPermission(ctx, cashier.ID, perm.ID)
			Expect(errors.Is(err, internal.ErrDuplicateAssignment)).To(BeTrue())
		})

		It("requires both ends of the link to exist", func() {
			_, err := service.AssignPermission(ctx, 4242, 1)
			Expect(errors.Is(err, internal.ErrRoleNotFound)).To(BeTrue())

			_, err = service.AssignPermission(ctx, cashier.ID, 4242)
			Expect(errors.Is(err, internal.ErrPermissionNotFound)).To(BeTrue())
		})

		It("revokes a link and reports a missing one as NotFound", func() {
			perm, err := repo.GetPermissionByName(ctx, rbac.PermCheckoutProcess)
			Expect(err).NotTo(HaveOccurred())

			role, err := service.RevokePermission(ctx, cashier.ID, perm.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(role.PermissionNames()).To(Equal([]string{rbac.PermInventoryRead}))

			_, err = service.RevokePermission(ctx, cashier.ID, perm.ID)
			Expect(errors.Is(err, internal.ErrAssignmentNotFound)).To(BeTrue())
		})
	})

	Describe("permissions", func() {
		It("lists the vocabulary", func() {
			perms, err := service.ListPermissions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(len(rbac.Vocabulary())))
		})

		It("grants new permissions to Super Admin", func() {
			perm, err := service.CreatePermission(ctx, rbac.CreatePermissionDTO{Name: "report:read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(perm.ID).To(BeNumerically(">", 0))

			admin, err := service.GetRoleByName(ctx, rbac.RoleSuperAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(admin.HasAll("report:read")).To(BeTrue())
		})

		It("rejects duplicate names", func() {
			_, err := service.CreatePermission(ctx, rbac.CreatePermissionDTO{Name: rbac.PermUserRead})
			Expect(errors.Is(err, internal.ErrPermissionNameTaken)).To(BeTrue())
		})

		It("protects built-in permissions but allows custom ones to change", func() {
			builtin, err := repo.GetPermissionByName(ctx, rbac.PermUserRead)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdatePermission(ctx, builtin.ID, rbac.UpdatePermissionDTO{Name: strPtr("user:peek")})
			Expect(errors.Is(err, internal.ErrProtectedPermission)).To(BeTrue())
			Expect(errors.Is(service.DeletePermission(ctx, builtin.ID), internal.ErrProtectedPermission)).To(BeTrue())

			custom, err := service.CreatePermission(ctx, rbac.CreatePermissionDTO{Name: "report:read"})
			Expect(err).NotTo(HaveOccurred())
			renamed, err := service.UpdatePermission(ctx, custom.ID, rbac.UpdatePermissionDTO{Name: strPtr("report:view")})
			Expect(err).NotTo(HaveOccurred())
			Expect(renamed.Name).To(Equal("report:view"))

			Expect(service.DeletePermission(ctx, custom.ID)).To(Succeed())
			admin, err := service.GetRoleByName(ctx, rbac.RoleSuperAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(admin.PermissionNames()).To(ConsistOf(rbac.Vocabulary()))
		})
	})
})
