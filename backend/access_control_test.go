// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import "testing"

func TestAccessControl_IsAllowed(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ac := NewAccessControl(r, "Boot@Example.com")

	t.Run("NoPolicy", func(t *testing.T) {
		if ok, _ := ac.IsAllowed("anyone@example.com"); !ok {
			t.Error("default open without a policy")
		}
		if ok, msg := ac.IsAllowed(""); ok || msg != "Authentication required" {
			t.Errorf("empty email: ok=%v msg=%q", ok, msg)
		}
	})

	r.UpdateAccessPolicy(&UserAccessPolicy{
		DefaultPolicy:      "deny",
		DefaultDenyMessage: "This instance is invite only.",
		Admins:             []string{"Admin@Example.com"},
		Users: map[string]UserOverride{
			"friend@example.com": {Access: "allow"},
			"banned@example.com": {Access: "deny"},
		},
	})

	t.Run("BootstrapAdmin", func(t *testing.T) {
		if ok, _ := ac.IsAllowed("boot@example.com"); !ok {
			t.Error("bootstrap admin denied")
		}
	})
	t.Run("PolicyAdmin", func(t *testing.T) {
		if ok, _ := ac.IsAllowed("admin@example.com"); !ok {
			t.Error("policy admin denied")
		}
	})
	t.Run("UserOverrideAllow", func(t *testing.T) {
		if ok, _ := ac.IsAllowed("friend@example.com"); !ok {
			t.Error("allowed override denied")
		}
	})
	t.Run("UserOverrideDeny", func(t *testing.T) {
		ok, msg := ac.IsAllowed("banned@example.com")
		if ok || msg != "This instance is invite only." {
			t.Errorf("ok=%v msg=%q", ok, msg)
		}
	})
	t.Run("DefaultDeny", func(t *testing.T) {
		ok, msg := ac.IsAllowed("stranger@example.com")
		if ok || msg != "This instance is invite only." {
			t.Errorf("ok=%v msg=%q", ok, msg)
		}
	})
}

func TestAccessControl_IsAdmin(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ac := NewAccessControl(r, "boot@example.com")

	if !ac.IsAdmin("boot@example.com") {
		t.Error("bootstrap admin not admin")
	}
	if ac.IsAdmin("other@example.com") {
		t.Error("non-admin is admin without policy")
	}
	if ac.IsAdmin("") {
		t.Error("empty email is admin")
	}

	r.UpdateAccessPolicy(&UserAccessPolicy{Admins: []string{"Chief@Example.com"}})
	if !ac.IsAdmin("chief@example.com") {
		t.Error("policy admin not admin")
	}
	if ac.IsAdmin("other@example.com") {
		t.Error("non-admin is admin with policy")
	}
}

func TestAccessControl_Quotas(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ac := NewAccessControl(r, "")

	// No policy: unlimited.
	if err := ac.CheckGameQuota("u@example.com", 1000); err != nil {
		t.Errorf("no policy: %v", err)
	}

	r.UpdateAccessPolicy(&UserAccessPolicy{
		DefaultMaxGames:   2,
		DefaultMaxRosters: 1,
		Users: map[string]UserOverride{
			"power@example.com":     {MaxGames: 100, MaxRosters: -1},
			"unlimited@example.com": {MaxGames: -1},
		},
	})

	if err := ac.CheckGameQuota("u@example.com", 1); err != nil {
		t.Errorf("under limit: %v", err)
	}
	if err := ac.CheckGameQuota("u@example.com", 2); err == nil {
		t.Error("at limit not rejected")
	}
	if err := ac.CheckGameQuota("power@example.com", 50); err != nil {
		t.Errorf("override limit: %v", err)
	}
	if err := ac.CheckRosterQuota("u@example.com", 1); err == nil {
		t.Error("roster at limit not rejected")
	}
	// A negative override blocks creation outright.
	if err := ac.CheckRosterQuota("power@example.com", 0); err == nil {
		t.Error("negative roster override not rejected")
	}
	if err := ac.CheckGameQuota("unlimited@example.com", 0); err == nil {
		t.Error("negative game override not rejected")
	}

	maxGames, maxRosters := ac.GetUserQuotas("power@example.com")
	if maxGames != 100 || maxRosters != -1 {
		t.Errorf("GetUserQuotas(power) = %d/%d", maxGames, maxRosters)
	}
	maxGames, maxRosters = ac.GetUserQuotas("u@example.com")
	if maxGames != 2 || maxRosters != 1 {
		t.Errorf("GetUserQuotas(default) = %d/%d", maxGames, maxRosters)
	}
}
