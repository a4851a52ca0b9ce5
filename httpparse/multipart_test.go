// File: httpparse/multipart_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpparse

import (
	"strings"
	"testing"
)

// TestParseForm_TwoFields exercises scenario S5: a body with boundary
// "boundary42", one text field name="a" value "hi", and one file field
// name="f" filename="t.txt" value "ABC".
func TestParseForm_TwoFields(t *testing.T) {
	contentType := `multipart/form-data; boundary=boundary42`
	body := strings.Join([]string{
		"--boundary42",
		`Content-Disposition: form-data; name="a"`,
		"",
		"hi",
		"--boundary42",
		`Content-Disposition: form-data; name="f"; filename="t.txt"`,
		"",
		"ABC",
		"--boundary42--",
		"",
	}, "\r\n")

	form, ok := ParseForm(contentType, []byte(body))
	if !ok {
		t.Fatalf("ParseForm() failed, want success")
	}
	if !form.Complete {
		t.Fatalf("form.Complete = false, want true")
	}
	if form.FieldCount != 2 {
		t.Fatalf("FieldCount = %d, want 2", form.FieldCount)
	}

	a, ok := form.FieldByName("a")
	if !ok {
		t.Fatalf("FieldByName(a) not found")
	}
	if a.IsFile {
		t.Errorf("field a: IsFile = true, want false")
	}
	if got := string(a.Data); got != "hi" {
		t.Errorf("field a: Data = %q, want hi", got)
	}

	f, ok := form.FieldByName("f")
	if !ok {
		t.Fatalf("FieldByName(f) not found")
	}
	if !f.IsFile {
		t.Errorf("field f: IsFile = false, want true")
	}
	if got := string(f.Filename); got != "t.txt" {
		t.Errorf("field f: Filename = %q, want t.txt", got)
	}
	if got := string(f.Data); got != "ABC" {
		t.Errorf("field f: Data = %q, want ABC", got)
	}

	f0, ok := form.FieldByIdx(0)
	if !ok || string(f0.Name) != "a" {
		t.Errorf("FieldByIdx(0) = %q, want a", f0.Name)
	}
	f1, ok := form.FieldByIdx(1)
	if !ok || string(f1.Name) != "f" {
		t.Errorf("FieldByIdx(1) = %q, want f", f1.Name)
	}
	if _, ok := form.FieldByIdx(2); ok {
		t.Errorf("FieldByIdx(2) should be out of range")
	}
}

func TestParseForm_MissingBoundary(t *testing.T) {
	if _, ok := ParseForm("multipart/form-data", []byte("whatever")); ok {
		t.Fatalf("ParseForm() with no boundary should fail")
	}
}

func TestParseForm_TruncatedBody(t *testing.T) {
	contentType := `multipart/form-data; boundary=xyz`
	body := "--xyz\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhi"
	if _, ok := ParseForm(contentType, []byte(body)); ok {
		t.Fatalf("ParseForm() on truncated body should fail")
	}
}
