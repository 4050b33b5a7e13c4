package revision

import "testing"

func TestDiffAppendOnlyRevision(t *testing.T) {
	before := "line one\nline two\n"
	after := "line one\nline two\nrevision notes\n"

	lines := Diff(before, after)

	var added, removed, context int
	for _, line := range lines {
		switch line.Type {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		case LineContext:
			context++
		}
	}

	if added != 1 || removed != 0 || context != 2 {
		t.Errorf("expected 1 added / 0 removed / 2 context, got %d/%d/%d", added, removed, context)
	}
}

func TestDiffIdentical(t *testing.T) {
	lines := Diff("same\n", "same\n")
	for _, line := range lines {
		if line.Type != LineContext {
			t.Errorf("identical inputs should yield only context lines, got %s", line.Type)
		}
	}
}

func TestDiffLineNumbers(t *testing.T) {
	lines := Diff("a\nb\n", "a\nc\n")

	for _, line := range lines {
		switch line.Type {
		case LineRemoved:
			if line.Text == "b" && line.OldLine != 2 {
				t.Errorf("removed 'b' should be old line 2, got %d", line.OldLine)
			}
		case LineAdded:
			if line.Text == "c" && line.NewLine != 2 {
				t.Errorf("added 'c' should be new line 2, got %d", line.NewLine)
			}
		}
	}
}
