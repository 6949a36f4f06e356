package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Roles with a dashboard of their own.
const (
	RoleStudent  = "student"
	RoleTeacher  = "teacher"
	RoleOrgAdmin = "org_admin"
	RoleHOD      = "hod"
)

var dashboardPaths = map[string]string{
	RoleStudent:  "/api/dashboard/student/",
	RoleTeacher:  "/api/dashboard/teacher/",
	RoleOrgAdmin: "/api/dashboard/org-admin/",
	RoleHOD:      "/api/dashboard/hod/",
}

var roleAliases = map[string]string{
	"admin":              RoleOrgAdmin,
	"orgadmin":           RoleOrgAdmin,
	"organization_admin": RoleOrgAdmin,
	"organisation_admin": RoleOrgAdmin,
	"head_of_department": RoleHOD,
	"faculty":            RoleTeacher,
	"staff":              RoleTeacher,
}

// NormalizeRole folds case and separators and resolves common aliases.
// "Org Admin", "org-admin" and "ORG_ADMIN" all become "org_admin".
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	r = strings.NewReplacer(" ", "_", "-", "_").Replace(r)
	if alias, ok := roleAliases[r]; ok {
		return alias
	}
	return r
}

// DashboardPath returns the dashboard endpoint for role.
func DashboardPath(role string) (string, error) {
	path, ok := dashboardPaths[NormalizeRole(role)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return path, nil
}

// DashboardPermission returns the codename that grants access to role's
// dashboard, e.g. "view_org_admin_dashboard".
func DashboardPermission(role string) string {
	return "view_" + NormalizeRole(role) + "_dashboard"
}

// GetDashboard fetches the role-specific dashboard summary as raw JSON.
func (c *Client) GetDashboard(ctx context.Context, role string) (json.RawMessage, error) {
	path, err := DashboardPath(role)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "dashboard", path, &raw); err != nil {
		return nil, fmt.Errorf("get %s dashboard: %w", NormalizeRole(role), err)
	}
	return raw, nil
}
