package diff

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	t.Run("empty before is initial extraction", func(t *testing.T) {
		if got := Describe("", "anything"); got != "initial extraction" {
			t.Errorf("Describe() = %q", got)
		}
	})

	t.Run("identical inputs report no change", func(t *testing.T) {
		if got := Describe("same\ncontent", "same\ncontent"); got != "re-extraction, no content change" {
			t.Errorf("Describe() = %q", got)
		}
	})

	t.Run("small change lists the lines", func(t *testing.T) {
		before := "Sheet1 rows 1-10: A1=100;\nSheet1 rows 11-20: A11=200;"
		after := "Sheet1 rows 1-10: A1=150;\nSheet1 rows 11-20: A11=200;"

		got := Describe(before, after)
		if !strings.Contains(got, "1 line(s) added, 1 removed") {
			t.Errorf("Describe() = %q, want counts", got)
		}
		if !strings.Contains(got, "+ Sheet1 rows 1-10: A1=150;") {
			t.Errorf("Describe() = %q, want added line quoted", got)
		}
		if !strings.Contains(got, "- Sheet1 rows 1-10: A1=100;") {
			t.Errorf("Describe() = %q, want removed line quoted", got)
		}
	})

	t.Run("large change reports counts only", func(t *testing.T) {
		var beforeLines, afterLines []string
		for i := 0; i < 10; i++ {
			beforeLines = append(beforeLines, "old line")
			afterLines = append(afterLines, "new line")
		}
		got := Describe(strings.Join(beforeLines, "\n"), strings.Join(afterLines, "\n"))
		if strings.Contains(got, ":") {
			t.Errorf("Describe() = %q, want no quoted lines", got)
		}
		if !strings.Contains(got, "added") || !strings.Contains(got, "removed") {
			t.Errorf("Describe() = %q, want counts", got)
		}
	})
}
