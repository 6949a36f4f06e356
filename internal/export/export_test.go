package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	"github.com/prowessninja/smsctl/internal/models"
)

func sampleUsers(t *testing.T) []models.User {
	t.Helper()
	var users []models.User
	raw := `[{"id":1,"first_name":"Priya","last_name":"Nair","email":"priya@school.test","phone":"555-0101","is_active":true},
	         {"id":"u-2","full_name":"Sam Okafor","email":"sam@school.test","role":"teacher"}]`
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return users
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		raw     string
		want    Destination
		wantErr bool
	}{
		{raw: "users.csv", want: Destination{Scheme: SchemeFile, Key: "users.csv"}},
		{raw: "/tmp/out/users.json", want: Destination{Scheme: SchemeFile, Key: "/tmp/out/users.json"}},
		{raw: "file:///tmp/users.csv", want: Destination{Scheme: SchemeFile, Key: "/tmp/users.csv"}},
		{raw: "s3://reports/directory/users.csv", want: Destination{Scheme: SchemeS3, Container: "reports", Key: "directory/users.csv"}},
		{raw: "S3://reports/users.csv", want: Destination{Scheme: SchemeS3, Container: "reports", Key: "users.csv"}},
		{raw: "azblob://exports/2025/users.json", want: Destination{Scheme: SchemeAzure, Container: "exports", Key: "2025/users.json"}},
		{raw: "s3://reports", wantErr: true},
		{raw: "s3:///users.csv", wantErr: true},
		{raw: "gs://bucket/users.csv", wantErr: true},
		{raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDestination(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDestination(%q) = %+v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDestination(%q) error = %v", tt.raw, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDestination(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}

	if _, err := ParseDestination(""); !errors.Is(err, ErrEmptyDestination) {
		t.Errorf("empty destination error = %v, want ErrEmptyDestination", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		format, dest string
		want         Format
	}{
		{"", "users.csv", FormatCSV},
		{"", "s3://b/users.JSON", FormatJSON},
		{"", "users", FormatCSV},
		{"JSON", "users.csv", FormatJSON},
		{"csv", "users.json", FormatCSV},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.format, tt.dest)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q, %q) = %q, %v; want %q", tt.format, tt.dest, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("xml", "users.xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleUsers(t), FormatCSV); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := "id,name,email,phone,group,status\n" +
		"1,Priya Nair,priya@school.test,555-0101,,Active\n" +
		"u-2,Sam Okafor,sam@school.test,,teacher,\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeJSONKeepsServerFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleUsers(t), FormatJSON); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0]["is_active"] != true || out[1]["role"] != "teacher" {
		t.Errorf("server fields not preserved: %v", out)
	}

	buf.Reset()
	if err := Encode(&buf, nil, FormatJSON); err != nil {
		t.Fatalf("Encode(nil) error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Encode(nil) = %q, want []", buf.String())
	}
}

func TestWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "users.csv")
	dest, err := ParseDestination(path)
	if err != nil {
		t.Fatalf("ParseDestination() error = %v", err)
	}
	sink, err := NewSink(context.Background(), dest, nil)
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	if err := Write(context.Background(), sink, sampleUsers(t), FormatCSV); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if !strings.Contains(string(data), "Priya Nair") {
		t.Errorf("export content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

// objectStore records PUT requests.
type objectStore struct {
	mu     sync.Mutex
	path   string
	body   string
	ctype  string
	status int
	header map[string]string
}

func (o *objectStore) handler(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPut {
		w.WriteHeader(nethttp.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	o.mu.Lock()
	o.path = r.URL.Path
	o.body = string(body)
	o.ctype = r.Header.Get("Content-Type")
	o.mu.Unlock()
	for k, v := range o.header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(o.status)
}

func TestS3SinkPutsObject(t *testing.T) {
	store := &objectStore{status: nethttp.StatusOK, header: map[string]string{"ETag": `"abc"`}}
	srv := httptest.NewServer(nethttp.HandlerFunc(store.handler))
	defer srv.Close()
	t.Setenv("AWS_REGION", "us-east-1")

	sink, err := NewS3Sink(context.Background(), srv.Client(), "reports", "directory/users.csv", func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
		o.Credentials = credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", "")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	if err != nil {
		t.Fatalf("NewS3Sink() error = %v", err)
	}
	if sink.String() != "s3://reports/directory/users.csv" {
		t.Errorf("String() = %q", sink.String())
	}

	if err := Write(context.Background(), sink, sampleUsers(t), FormatCSV); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.path != "/reports/directory/users.csv" {
		t.Errorf("PUT path = %q", store.path)
	}
	if !strings.Contains(store.body, "Sam Okafor") {
		t.Errorf("uploaded body = %q", store.body)
	}
	if store.ctype != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", store.ctype)
	}
}

func TestAzureSinkUploadsBlob(t *testing.T) {
	store := &objectStore{status: nethttp.StatusCreated, header: map[string]string{"ETag": `"0x1"`}}
	srv := httptest.NewServer(nethttp.HandlerFunc(store.handler))
	defer srv.Close()
	t.Setenv(EnvAzureEndpoint, srv.URL+"/devaccount")
	t.Setenv(EnvAzureSAS, "?sv=2022-11-02&sig=test")

	dest, _ := ParseDestination("azblob://exports/users.json")
	sink, err := NewSink(context.Background(), dest, srv.Client())
	if err != nil {
		t.Fatalf("NewSink() error = %v", err)
	}
	if err := Write(context.Background(), sink, sampleUsers(t), FormatJSON); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.path != "/devaccount/exports/users.json" {
		t.Errorf("PUT path = %q", store.path)
	}
	if !strings.Contains(store.body, `"first_name":"Priya"`) && !strings.Contains(store.body, `"first_name": "Priya"`) {
		t.Errorf("uploaded body = %q", store.body)
	}
}

func TestAzureSinkNeedsAccount(t *testing.T) {
	t.Setenv(EnvAzureEndpoint, "")
	t.Setenv(EnvAzureAccount, "")
	t.Setenv(EnvAzureSAS, "")

	if _, err := NewAzureSink(nil, "exports", "users.csv"); err == nil {
		t.Fatal("NewAzureSink() error = nil without an account")
	}

	t.Setenv(EnvAzureAccount, "schoolreports")
	if _, err := NewAzureSink(nil, "exports", "users.csv"); err == nil {
		t.Fatal("NewAzureSink() error = nil without a SAS token")
	}
}

type scriptedFetcher struct {
	pages []models.PageResult
	calls []int
}

func (f *scriptedFetcher) FetchPage(_ context.Context, _ string, filters models.FilterSet) (*models.PageResult, error) {
	f.calls = append(f.calls, filters.Page)
	if filters.Page > len(f.pages) {
		return nil, errors.New("HTTP 404: Invalid page.")
	}
	p := f.pages[filters.Page-1]
	return &p, nil
}

func TestCollectFollowsNext(t *testing.T) {
	users := sampleUsers(t)
	next := "http://sms.test/api/users/?page=2"
	total := 2
	f := &scriptedFetcher{pages: []models.PageResult{
		{Count: &total, Next: &next, Results: users[:1]},
		{Count: &total, Results: users[1:]},
	}}

	var progress []int
	got, count, err := Collect(context.Background(), f, "tok", models.FilterSet{Page: 7, PageSize: 1}, 0, func(_ *models.PageResult, loaded int) {
		progress = append(progress, loaded)
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(got) != 2 || count == nil || *count != 2 {
		t.Errorf("Collect() = %d users, count %v", len(got), count)
	}
	if diff := cmp.Diff([]int{1, 2}, f.calls); diff != "" {
		t.Errorf("pages fetched mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectStopsAtMaxPages(t *testing.T) {
	next := "http://sms.test/api/users/?page=next"
	page := models.PageResult{Next: &next, Results: sampleUsers(t)}
	f := &scriptedFetcher{pages: []models.PageResult{page, page, page}}

	got, _, err := Collect(context.Background(), f, "tok", models.FilterSet{}, 2, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(f.calls) != 2 || len(got) != 4 {
		t.Errorf("Collect() fetched %d pages, %d users; want 2 pages, 4 users", len(f.calls), len(got))
	}
}

func TestCollectReportsSafetyCap(t *testing.T) {
	saved := pageLimit
	pageLimit = 3
	t.Cleanup(func() { pageLimit = saved })

	next := "http://sms.test/api/users/?page=next"
	page := models.PageResult{Next: &next, Results: sampleUsers(t)}
	f := &scriptedFetcher{pages: []models.PageResult{page, page, page, page}}

	got, _, err := Collect(context.Background(), f, "tok", models.FilterSet{}, 0, nil)
	if !errors.Is(err, ErrPageLimit) {
		t.Fatalf("Collect() error = %v, want ErrPageLimit", err)
	}
	if len(f.calls) != 3 || len(got) != 6 {
		t.Errorf("Collect() fetched %d pages, %d users; want 3 pages, 6 users", len(f.calls), len(got))
	}

	// Ending exactly at the cap with no next page is a complete walk.
	last := models.PageResult{Results: sampleUsers(t)}
	f = &scriptedFetcher{pages: []models.PageResult{page, page, last}}
	if _, _, err := Collect(context.Background(), f, "tok", models.FilterSet{}, 0, nil); err != nil {
		t.Errorf("Collect() error = %v, want nil when the last page has no next", err)
	}
}

func TestCollectReturnsPartialOnError(t *testing.T) {
	next := "http://sms.test/api/users/?page=2"
	f := &scriptedFetcher{pages: []models.PageResult{{Next: &next, Results: sampleUsers(t)}}}

	got, _, err := Collect(context.Background(), f, "tok", models.FilterSet{}, 0, nil)
	if err == nil {
		t.Fatal("Collect() error = nil, want page 2 failure")
	}
	if len(got) != 2 {
		t.Errorf("partial result = %d users, want 2", len(got))
	}
}
