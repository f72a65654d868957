package auth

import "testing"

func TestHasRoleIsExactMembership(t *testing.T) {
	for _, r := range Roles {
		want := r == RoleAdmin
		if got := HasRole(r, RoleAdmin); got != want {
			t.Fatalf("HasRole(%s, Admin)=%v, want %v", r, got, want)
		}
	}
	if HasRole(RoleSuperAdmin, RoleUser, RoleAdmin) {
		t.Fatal("SuperAdmin must not be implied by Admin")
	}
	if !HasRole(RoleSuperAdmin, RoleAdmin, RoleSuperAdmin) {
		t.Fatal("explicitly listed SuperAdmin should pass")
	}
	if HasRole(RoleUser) {
		t.Fatal("empty allow list must reject")
	}
}

func TestIsAdmin(t *testing.T) {
	cases := map[Role]bool{RoleUser: false, RoleAdmin: true, RoleSuperAdmin: true, Role("root"): false}
	for r, want := range cases {
		if got := IsAdmin(r); got != want {
			t.Fatalf("IsAdmin(%q)=%v, want %v", r, got, want)
		}
	}
}

func TestParseRoleAliases(t *testing.T) {
	cases := map[string]Role{
		"User":        RoleUser,
		"user":        RoleUser,
		"ADMIN":       RoleAdmin,
		"SuperAdmin":  RoleSuperAdmin,
		"super_admin": RoleSuperAdmin,
		"super-admin": RoleSuperAdmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%s, want %s", in, got, want)
		}
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRoleValidRejectsAliases(t *testing.T) {
	if Role("admin").Valid() || Role("super_admin").Valid() {
		t.Fatal("aliases must not be valid canonical roles")
	}
	for _, r := range Roles {
		if !r.Valid() {
			t.Fatalf("%s should be valid", r)
		}
	}
}
