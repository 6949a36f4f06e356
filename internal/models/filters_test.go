package models

import "testing"

func TestFilterSet_QueryOmitsEmpty(t *testing.T) {
	f := FilterSet{AcademicYear: "5", Branch: "2", Group: "", Search: "", Page: 1, PageSize: 10}

	got := f.Query().Encode()
	want := "academic_year=5&branch=2&page=1&page_size=10"
	if got != want {
		t.Errorf("Query().Encode() = %q, want %q", got, want)
	}
}

func TestFilterSet_QueryIncludesSearchAndGroup(t *testing.T) {
	f := FilterSet{AcademicYear: "5", Branch: "2", Group: "teacher", Search: "ana maria", Page: 3, PageSize: 10}

	q := f.Query()
	if q.Get(ParamGroup) != "teacher" {
		t.Errorf("group = %q, want %q", q.Get(ParamGroup), "teacher")
	}
	if q.Get(ParamSearch) != "ana maria" {
		t.Errorf("search = %q, want %q", q.Get(ParamSearch), "ana maria")
	}
	if q.Get(ParamPage) != "3" {
		t.Errorf("page = %q, want %q", q.Get(ParamPage), "3")
	}
}

func TestFilterSet_Epoch(t *testing.T) {
	a := FilterSet{AcademicYear: "5", Branch: "2", Page: 1, PageSize: 10}
	b := a
	b.Page = 4

	if !a.SameEpoch(b) {
		t.Error("filter sets differing only by page should share an epoch")
	}

	b.Search = "x"
	if a.SameEpoch(b) {
		t.Error("changing search should start a new epoch")
	}
}

func TestFilterSet_HasScope(t *testing.T) {
	if (FilterSet{AcademicYear: "5"}).HasScope() {
		t.Error("HasScope() = true without branch")
	}
	if !(FilterSet{AcademicYear: "5", Branch: "2"}).HasScope() {
		t.Error("HasScope() = false with year and branch")
	}
}
