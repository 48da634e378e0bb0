package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var ignoreTimes = cmpopts.IgnoreFields(Visit{}, "At")

func TestVisitSequence(t *testing.T) {
	st, cleanup := MustTempStore()
	defer cleanup()

	next, err := st.NextVisitSeq()
	if err != nil {
		t.Fatalf("NextVisitSeq: %v", err)
	}
	if next != 1 {
		t.Errorf("first NextVisitSeq = %d, want 1", next)
	}

	seq, err := st.AddVisit(Visit{Label: "Partition [3, 3, 2, 1]"})
	if err != nil {
		t.Fatalf("AddVisit: %v", err)
	}
	if seq != 1 {
		t.Errorf("AddVisit seq = %d, want 1", seq)
	}

	got, err := st.Visit(seq)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if got.Label != "Partition [3, 3, 2, 1]" {
		t.Errorf("Label = %q", got.Label)
	}
	if got.At.IsZero() {
		t.Error("AddVisit must stamp a zero At")
	}
	if got.Seq != seq {
		t.Errorf("Seq = %d, want %d", got.Seq, seq)
	}
}

func TestVisitIterationAndDeletion(t *testing.T) {
	st, cleanup := MustTempStore()
	defer cleanup()

	labels := []string{"Integer 1", "Integer 2", "Tableau [[1, 2], [3]]"}
	for _, label := range labels {
		if _, err := st.AddVisit(Visit{Label: label}); err != nil {
			t.Fatalf("AddVisit(%q): %v", label, err)
		}
	}

	visits, err := st.VisitsWithSeq(0, -1)
	if err != nil {
		t.Fatalf("VisitsWithSeq: %v", err)
	}
	want := []Visit{
		{Label: "Integer 1", Seq: 1},
		{Label: "Integer 2", Seq: 2},
		{Label: "Tableau [[1, 2], [3]]", Seq: 3},
	}
	if diff := cmp.Diff(want, visits, ignoreTimes); diff != "" {
		t.Errorf("visits mismatch (-want +got):\n%s", diff)
	}

	// Bounded iteration excludes upto.
	visits, err = st.VisitsWithSeq(2, 3)
	if err != nil {
		t.Fatalf("VisitsWithSeq(2, 3): %v", err)
	}
	if diff := cmp.Diff(want[1:2], visits, ignoreTimes); diff != "" {
		t.Errorf("bounded visits mismatch (-want +got):\n%s", diff)
	}

	if err := st.DelVisit(2); err != nil {
		t.Fatalf("DelVisit: %v", err)
	}
	if _, err := st.Visit(2); !errors.Is(err, ErrNoSuchVisit) {
		t.Errorf("Visit(deleted) = %v, want ErrNoSuchVisit", err)
	}
	// Deleting again is not an error.
	if err := st.DelVisit(2); err != nil {
		t.Errorf("second DelVisit: %v", err)
	}
	// The sequence keeps climbing past deletions.
	if seq, _ := st.AddVisit(Visit{Label: "Integer 4"}); seq != 4 {
		t.Errorf("AddVisit after delete seq = %d, want 4", seq)
	}
}

func TestVisitPrefixSearch(t *testing.T) {
	st, cleanup := MustTempStore()
	defer cleanup()

	for _, label := range []string{"Integer 1", "Partition [2, 1]", "Integer 2", "Partition [3]"} {
		if _, err := st.AddVisit(Visit{Label: label}); err != nil {
			t.Fatalf("AddVisit(%q): %v", label, err)
		}
	}

	v, err := st.NextVisit(0, "Partition")
	if err != nil {
		t.Fatalf("NextVisit: %v", err)
	}
	if v.Seq != 2 {
		t.Errorf("NextVisit seq = %d, want 2", v.Seq)
	}

	v, err = st.NextVisit(3, "Partition")
	if err != nil {
		t.Fatalf("NextVisit from 3: %v", err)
	}
	if v.Seq != 4 {
		t.Errorf("NextVisit from 3 seq = %d, want 4", v.Seq)
	}

	v, err = st.PrevVisit(-1, "Integer")
	if err != nil {
		t.Fatalf("PrevVisit: %v", err)
	}
	if v.Seq != 3 {
		t.Errorf("PrevVisit seq = %d, want 3", v.Seq)
	}

	v, err = st.PrevVisit(3, "Integer")
	if err != nil {
		t.Fatalf("PrevVisit upto 3: %v", err)
	}
	if v.Seq != 1 {
		t.Errorf("PrevVisit upto 3 seq = %d, want 1", v.Seq)
	}

	if _, err := st.NextVisit(0, "Polynomial"); !errors.Is(err, ErrNoMatchingVisit) {
		t.Errorf("NextVisit(no match) = %v, want ErrNoMatchingVisit", err)
	}
	if _, err := st.PrevVisit(-1, "Polynomial"); !errors.Is(err, ErrNoMatchingVisit) {
		t.Errorf("PrevVisit(no match) = %v, want ErrNoMatchingVisit", err)
	}
}

func TestBookmarks(t *testing.T) {
	st, cleanup := MustTempStore()
	defer cleanup()

	if _, err := st.Bookmark("start"); !errors.Is(err, ErrNoBookmark) {
		t.Errorf("Bookmark(absent) = %v, want ErrNoBookmark", err)
	}

	if err := st.SetBookmark("start", "Partition([3, 3, 2, 1])"); err != nil {
		t.Fatalf("SetBookmark: %v", err)
	}
	if err := st.SetBookmark("other", "Tableau([[1, 2], [3]])"); err != nil {
		t.Fatalf("SetBookmark: %v", err)
	}

	expr, err := st.Bookmark("start")
	if err != nil {
		t.Fatalf("Bookmark: %v", err)
	}
	if expr != "Partition([3, 3, 2, 1])" {
		t.Errorf("Bookmark = %q", expr)
	}

	// Replacement, listing, and deletion.
	if err := st.SetBookmark("start", "ZZ"); err != nil {
		t.Fatalf("SetBookmark replace: %v", err)
	}
	all, err := st.Bookmarks()
	if err != nil {
		t.Fatalf("Bookmarks: %v", err)
	}
	want := map[string]string{"start": "ZZ", "other": "Tableau([[1, 2], [3]])"}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("bookmarks mismatch (-want +got):\n%s", diff)
	}

	if err := st.DelBookmark("start"); err != nil {
		t.Fatalf("DelBookmark: %v", err)
	}
	if _, err := st.Bookmark("start"); !errors.Is(err, ErrNoBookmark) {
		t.Errorf("Bookmark(deleted) = %v, want ErrNoBookmark", err)
	}
	if err := st.DelBookmark("start"); err != nil {
		t.Errorf("second DelBookmark: %v", err)
	}
}
