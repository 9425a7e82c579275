package middleware

import "testing"

func TestHasPermission(t *testing.T) {
	user := &AppUser{
		OwnerID:     "o1",
		Role:        "user",
		Permissions: []string{"people.view"},
	}
	if !HasPermission(user, "people.view") {
		t.Fatal("granted permission must pass")
	}
	if HasPermission(user, "people.merge") {
		t.Fatal("missing permission must fail")
	}
	if HasPermission(nil, "people.view") {
		t.Fatal("nil user must fail")
	}
}

func TestHasPermissionAdminBypass(t *testing.T) {
	admin := &AppUser{OwnerID: "o1", Role: "admin"}
	if !IsAdmin(admin) {
		t.Fatal("admin role not recognized")
	}
	if !HasPermission(admin, "people.merge") {
		t.Fatal("admin must hold every permission without an explicit grant")
	}
	if IsAdmin(&AppUser{Role: "user"}) {
		t.Fatal("user role must not be admin")
	}
}
