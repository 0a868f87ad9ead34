package types

import "testing"

func TestParseModificationKind(t *testing.T) {
	cases := map[string]ModificationKind{
		"A":   ChangeAdded,
		"m":   ChangeModified,
		" D ": ChangeDeleted,
		"R":   ChangeUnknown,
		"":    ChangeUnknown,
	}
	for code, want := range cases {
		if got := ParseModificationKind(code); got != want {
			t.Fatalf("ParseModificationKind(%q) = %v, want %v", code, got, want)
		}
	}
	if ChangeAdded.Code() != "A" || ChangeUnknown.Code() != "" {
		t.Fatalf("unexpected codes")
	}
	if ChangeDeleted.String() != "deleted" || ChangeUnknown.String() != "unknown" {
		t.Fatalf("unexpected names")
	}
}

func TestEntityKeys(t *testing.T) {
	commit := &Commit{SHA: "c1", Timestamp: Timestamp{Date: "2024-03-01", Time: "10:00:00 +0000", Epoch: 42}}
	change := &CommitFileChange{Code: "A", RelativePath: "a/b.go", Index: 3, Commit: commit}

	if got := change.EntityKey(); got != "c1:3:a/b.go" {
		t.Fatalf("unexpected change key %q", got)
	}
	if (&CommitFileChange{RelativePath: "x"}).EntityKey() != ":0:x" {
		t.Fatalf("orphan change key should not panic")
	}

	props := commit.Properties()
	if props["date"] != "2024-03-01" || props["epoch"] != int64(42) {
		t.Fatalf("unexpected commit properties %v", props)
	}
	if (&Author{Ident: "A <a@x>"}).Properties()["identString"] != "A <a@x>" {
		t.Fatalf("author ident property missing")
	}
	if (&Repository{Name: "r", Path: "/r/.git"}).Properties()["fileName"] != "/r/.git" {
		t.Fatalf("repository path property missing")
	}
}

func TestFileStampProperties(t *testing.T) {
	f := &File{RelativePath: "a.go"}
	if len(f.Properties()) != 1 {
		t.Fatalf("unset stamps must be omitted: %v", f.Properties())
	}

	ts := Timestamp{DateTime: "2024-03-01 10:00:00 +0000", Epoch: 7}
	f.CreatedAt = StampOf(ts)
	f.DeletedAt = StampOf(ts)
	props := f.Properties()
	if props["createdAt"] != ts.DateTime || props["createdAtEpoch"] != int64(7) {
		t.Fatalf("unexpected created stamp %v", props)
	}
	if _, ok := props["lastModificationAt"]; ok {
		t.Fatalf("unexpected modification stamp %v", props)
	}
	if props["deletedAt"] != ts.DateTime {
		t.Fatalf("unexpected deleted stamp %v", props)
	}
}
