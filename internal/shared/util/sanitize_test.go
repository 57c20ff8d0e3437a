package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	got, err := SanitizeFileName("report/v1.docx")
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if got != "report_v1.docx" {
		t.Fatalf("got %q", got)
	}

	if _, err := SanitizeFileName("../../etc/passwd"); err == nil {
		t.Fatal("expected traversal rejection")
	}
	if _, err := SanitizeFileName("   "); err == nil {
		t.Fatal("expected empty-name rejection")
	}
}

func TestPathSafeToken(t *testing.T) {
	cases := map[string]string{
		"Sheet1":            "Sheet1",
		"Sheet 1":           "Sheet_1",
		"Math (Grade 5)":    "Math_Grade_5",
		"  trimmed  ":       "trimmed",
		"a//b\\\\c":         "a_b_c",
		"***":               "",
		"score-v1.2":        "score-v1.2",
		"reading & writing": "reading_writing",
	}
	for in, want := range cases {
		if got := PathSafeToken(in); got != want {
			t.Fatalf("PathSafeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
