package output

import (
	"errors"
	"testing"
)

func userRecord() *Record {
	return &Record{
		ID:          "out_1",
		OutputType:  "analysis",
		FullContent: "full text body",
		Preview:     "preview text",
		Truncated:   true,
		Owner:       UserOwner("u_alice"),
	}
}

func sessionRecord() *Record {
	return &Record{
		ID:         "out_2",
		OutputType: "rewrite",
		Preview:    "preview text",
		Truncated:  true,
		Owner:      SessionOwner("sess-1"),
	}
}

func TestDecideOverrideReturnsAllAvailableContent(t *testing.T) {
	cases := []struct {
		name string
		rec  *Record
		want string
	}{
		{"user owned with full", userRecord(), "full text body"},
		{"session owned preview only", sessionRecord(), "preview text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decide(tc.rec, Requester{}, true)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if !d.Authorized {
				t.Error("override decision should be authorized")
			}
			if d.Content != tc.want {
				t.Errorf("content = %q, want %q", d.Content, tc.want)
			}
		})
	}
}

func TestDecideSessionOwnedNeverUpgrades(t *testing.T) {
	rec := sessionRecord()
	requesters := []Requester{
		{},
		{SessionID: "sess-1"},
		{SessionID: "sess-other"},
		{UserID: "u_alice", Pro: true}, // even a Pro subscriber sees only the preview
	}
	for _, req := range requesters {
		d, err := Decide(rec, req, false)
		if err != nil {
			t.Fatalf("Decide(%+v): %v", req, err)
		}
		if d.Authorized {
			t.Errorf("requester %+v: anonymous artifact must never authorize", req)
		}
		if d.Content != rec.Preview {
			t.Errorf("requester %+v: content = %q, want preview", req, d.Content)
		}
	}
}

func TestDecideForeignOwnerIsNotFound(t *testing.T) {
	rec := userRecord()
	for _, req := range []Requester{
		{},
		{UserID: "u_mallory", Pro: true},
		{SessionID: "sess-1"},
	} {
		_, err := Decide(rec, req, false)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("requester %+v: err = %v, want ErrNotFound", req, err)
		}
	}
}

func TestDecideOwnerProGetsFullContent(t *testing.T) {
	d, err := Decide(userRecord(), Requester{UserID: "u_alice", Pro: true}, false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Authorized || d.Content != "full text body" {
		t.Errorf("decision = %+v, want authorized full content", d)
	}
	if d.OutputType != "analysis" {
		t.Errorf("output type = %q, want analysis", d.OutputType)
	}
}

func TestDecideOwnerFreeGetsPreview(t *testing.T) {
	d, err := Decide(userRecord(), Requester{UserID: "u_alice"}, false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Authorized || d.Content != "preview text" {
		t.Errorf("decision = %+v, want unauthorized preview", d)
	}
}

func TestDecideOwnerProWithoutRetainedFullFallsBack(t *testing.T) {
	rec := userRecord()
	rec.FullContent = ""
	d, err := Decide(rec, Requester{UserID: "u_alice", Pro: true}, false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Authorized || d.Content != "preview text" {
		t.Errorf("decision = %+v, want unauthorized preview when full content absent", d)
	}
}

func TestDecideMigratedSessionKeepsPreviewAccess(t *testing.T) {
	rec := userRecord()
	rec.MigratedFromSession = "sess-old"

	d, err := Decide(rec, Requester{SessionID: "sess-old"}, false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Authorized || d.Content != "preview text" {
		t.Errorf("decision = %+v, want unauthorized preview via historical session", d)
	}

	if _, err := Decide(rec, Requester{SessionID: "sess-unrelated"}, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("unrelated session err = %v, want ErrNotFound", err)
	}
}

func TestDecideUntrackedOwnerGetsPreviewWithoutOverride(t *testing.T) {
	rec := userRecord()
	rec.Owner = NoOwner()
	d, err := Decide(rec, Requester{UserID: "u_alice", Pro: true}, false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Authorized || d.Content != "preview text" {
		t.Errorf("decision = %+v, want unauthorized preview for untracked owner", d)
	}
}

func TestDecideMissingRecord(t *testing.T) {
	if _, err := Decide(nil, Requester{UserID: "u_alice", Pro: true}, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
