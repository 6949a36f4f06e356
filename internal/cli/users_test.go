package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prowessninja/smsctl/internal/config"
	"github.com/prowessninja/smsctl/internal/permissions"
)

// isolateConfig points every config lookup at a fresh directory.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	t.Setenv(config.EnvAPIToken, "")
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv("HTTPS_PROXY", "")
	referenceCache.Invalidate()
	return dir
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := NewRootCmd()
	AddCommands(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// schoolAPI is a fake school-management backend.
type schoolAPI struct {
	permissions string

	mu      sync.Mutex
	queries []string
}

func (s *schoolAPI) handler() nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/api/users/me/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprint(w, `{"id":42,"username":"priya","role":"org_admin","branch":{"id":3,"name":"East Campus"}}`)
	})
	mux.HandleFunc("/api/permissions/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprint(w, s.permissions)
	})
	mux.HandleFunc("/api/academic-years/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprint(w, `[{"id":4,"name":"2024-25"},{"id":5,"name":"2025-26","is_current":true}]`)
	})
	mux.HandleFunc("/api/branches/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprint(w, `{"count":2,"next":null,"results":[{"id":2,"name":"North"},{"id":3,"name":"East Campus"}]}`)
	})
	mux.HandleFunc("/api/dashboard/org-admin/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		fmt.Fprint(w, `{"students":120,"teachers":14}`)
	})
	mux.HandleFunc("/api/users/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.RawQuery)
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Token test-token" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Invalid token."}`)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"count":3,"next":"http://%s/api/users/?page=2","results":[
				{"id":1,"first_name":"Asha","last_name":"Rao","email":"asha@school.test"},
				{"id":2,"first_name":"Ben","last_name":"Osei","phone":"555-0102"}]}`, r.Host)
		case "2":
			fmt.Fprint(w, `{"count":3,"next":null,"results":[{"id":3,"full_name":"Chen Li","email":"chen@school.test"}]}`)
		default:
			w.WriteHeader(nethttp.StatusNotFound)
			fmt.Fprint(w, `{"detail":"Invalid page."}`)
		}
	})
	return mux
}

func (s *schoolAPI) userQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func startSchoolAPI(t *testing.T, perms string) (*schoolAPI, string) {
	t.Helper()
	isolateConfig(t)
	api := &schoolAPI{permissions: perms}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	t.Setenv(config.EnvAPIToken, "test-token")
	return api, srv.URL
}

const allowAll = `["view_user","view_org_admin_dashboard"]`

func TestUsersListAllPages(t *testing.T) {
	fake, url := startSchoolAPI(t, allowAll)

	out, err := runCLI(t, "users", "list", "--all", "--api-url", url)
	if err != nil {
		t.Fatalf("users list error = %v\n%s", err, out)
	}

	for _, want := range []string{"2025-26 · East Campus", "Asha Rao", "Ben Osei", "Chen Li", "Showing 3 of 3 users"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	queries := fake.userQueries()
	if len(queries) != 2 {
		t.Fatalf("directory requests = %v, want 2", queries)
	}
	for _, want := range []string{"academic_year=5", "branch=3", "page=1", "page_size=10"} {
		if !strings.Contains(queries[0], want) {
			t.Errorf("first query %q missing %q", queries[0], want)
		}
	}
}

func TestUsersListJSONFirstPage(t *testing.T) {
	fake, url := startSchoolAPI(t, allowAll)

	out, err := runCLI(t, "users", "list", "--json", "--year", "4", "--branch", "2", "--search", "asha", "--api-url", url)
	if err != nil {
		t.Fatalf("users list error = %v\n%s", err, out)
	}

	start := strings.Index(out, "[")
	if start < 0 {
		t.Fatalf("no JSON array in output:\n%s", out)
	}
	var records []map[string]any
	if err := json.NewDecoder(strings.NewReader(out[start:])).Decode(&records); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	q := fake.userQueries()[0]
	for _, want := range []string{"academic_year=4", "branch=2", "search=asha"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
}

func TestUsersListRemembersScope(t *testing.T) {
	fake, url := startSchoolAPI(t, allowAll)

	if _, err := runCLI(t, "users", "list", "--year", "4", "--branch", "2", "--api-url", url); err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if _, err := runCLI(t, "users", "list", "--api-url", url); err != nil {
		t.Fatalf("second run error = %v", err)
	}

	queries := fake.userQueries()
	if len(queries) != 2 {
		t.Fatalf("directory requests = %v", queries)
	}
	if !strings.Contains(queries[1], "academic_year=4") || !strings.Contains(queries[1], "branch=2") {
		t.Errorf("saved scope not reused: %q", queries[1])
	}
}

func TestUsersListRequiresViewUser(t *testing.T) {
	fake, url := startSchoolAPI(t, `{"academics":["view_attendance"]}`)

	_, err := runCLI(t, "users", "list", "--api-url", url)
	var blocked *permissions.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want *permissions.BlockedError", err)
	}
	if len(blocked.Missing) != 1 || blocked.Missing[0] != PermViewUser {
		t.Errorf("missing = %v", blocked.Missing)
	}
	if n := len(fake.userQueries()); n != 0 {
		t.Errorf("directory fetched %d times without view_user", n)
	}
}

func TestUsersListRejectsBadToken(t *testing.T) {
	_, url := startSchoolAPI(t, allowAll)

	_, err := runCLI(t, "users", "list", "--token", "wrong", "--api-url", url)
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("error = %v, want HTTP 401", err)
	}
}

func TestUsersExportToFile(t *testing.T) {
	_, url := startSchoolAPI(t, allowAll)
	dest := filepath.Join(t.TempDir(), "out", "users.csv")

	out, err := runCLI(t, "users", "export", "--to", dest, "--api-url", url)
	if err != nil {
		t.Fatalf("users export error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Exported 3 users") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Errorf("export has %d lines, want header + 3:\n%s", len(lines), data)
	}
}

func TestUsersExportRejectsUnknownScheme(t *testing.T) {
	isolateConfig(t)
	if _, err := runCLI(t, "users", "export", "--to", "ftp://host/users.csv"); err == nil {
		t.Fatal("export to ftp:// should fail")
	}
}

func TestPermsCheck(t *testing.T) {
	_, url := startSchoolAPI(t, allowAll)

	out, err := runCLI(t, "perms", "check", "view_user", "--api-url", url)
	if err != nil {
		t.Fatalf("perms check error = %v", err)
	}
	if !strings.Contains(out, "✓ view_user") {
		t.Errorf("output = %q", out)
	}

	_, err = runCLI(t, "perms", "check", "view_user", "delete_user", "--api-url", url)
	var blocked *permissions.BlockedError
	if !errors.As(err, &blocked) || len(blocked.Missing) != 1 || blocked.Missing[0] != "delete_user" {
		t.Errorf("error = %v, want delete_user missing", err)
	}
}

func TestDashboardUsesOwnRole(t *testing.T) {
	_, url := startSchoolAPI(t, allowAll)

	out, err := runCLI(t, "dashboard", "--api-url", url)
	if err != nil {
		t.Fatalf("dashboard error = %v\n%s", err, out)
	}
	if !strings.Contains(out, `"students": 120`) {
		t.Errorf("output = %q", out)
	}
}

func TestDashboardRequiresRolePermission(t *testing.T) {
	_, url := startSchoolAPI(t, `["view_user"]`)

	_, err := runCLI(t, "dashboard", "--api-url", url)
	var blocked *permissions.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want *permissions.BlockedError", err)
	}
}
