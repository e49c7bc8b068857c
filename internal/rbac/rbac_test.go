package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer collaborate", role: RoleViewer, action: ActionCollaborate, allow: false},
		{name: "agent collaborate", role: RoleAgent, action: ActionCollaborate, allow: true},
		{name: "agent decide", role: RoleAgent, action: ActionDecide, allow: false},
		{name: "decider decide", role: RoleDecider, action: ActionDecide, allow: true},
		{name: "decider admin", role: RoleDecider, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("decider") != RoleDecider {
		t.Fatal("expected decider to normalize to itself")
	}
	if Normalize("") != RoleViewer {
		t.Fatal("expected empty role to normalize to viewer")
	}
	if Normalize("superuser") != RoleViewer {
		t.Fatal("expected unknown role to normalize to viewer")
	}
}
