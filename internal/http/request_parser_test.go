package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Alice  ":            "Alice",
		"Al\x00ice":            "Alice",
		"line one\nline two":   "line one\nline two",
		"tab\there\x1b[31mred": "tab\there[31mred",
		"":                     "",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	form := url.Values{"name": {" Alice "}, "message_type": {"Thank You"}, "context": {"met at the gala"}}
	r := httptest.NewRequest(http.MethodPost, "/compose", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if p.Err() != nil {
		t.Fatalf("unexpected error: %v", p.Err())
	}
	if p.IsJSON() {
		t.Error("form body detected as JSON")
	}
	in := ParseComposeInput(p)
	if in.Name != "Alice" || in.MessageType != "Thank You" || in.Context != "met at the gala" {
		t.Errorf("ParseComposeInput = %+v", in)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/compose", strings.NewReader(`{"name":"Bob","message_type":"Renewal Ask","email":"bob@x.com"}`))
	r.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if p.Err() != nil {
		t.Fatalf("unexpected error: %v", p.Err())
	}
	if !p.IsJSON() {
		t.Error("JSON body not detected")
	}
	in := ParseComposeInput(p)
	if in.Name != "Bob" || in.Email != "bob@x.com" || in.MessageType != "Renewal Ask" {
		t.Errorf("ParseComposeInput = %+v", in)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/compose", strings.NewReader(`{"name":`))
	r.Header.Set("Content-Type", "application/json")
	if p := NewRequestBodyParser(httptest.NewRecorder(), r); p.Err() == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseHistoryParams(t *testing.T) {
	p := ParseHistoryParams(url.Values{"name": {" Sam "}, "email": {"sam@x.com"}})
	if p.Name != "Sam" || p.Email != "sam@x.com" {
		t.Errorf("ParseHistoryParams = %+v", p)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"limit=5", 5},
		{"limit=0", 10},
		{"limit=-3", 10},
		{"limit=abc", 10},
		{"limit=5000", maxDraftsLimit},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		if got := ParseLimit(q, 10); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func multipartUpload(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.WriteString(fw, content)
	}
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestReadUpload(t *testing.T) {
	r := multipartUpload(t, "file", "../../donors.csv", "name,email\n")
	f, name, err := ReadUpload(httptest.NewRecorder(), r, 1<<20)
	if err != nil {
		t.Fatalf("ReadUpload: %v", err)
	}
	defer f.Close()
	if name != "donors.csv" {
		t.Errorf("name = %q", name)
	}
	body, _ := io.ReadAll(f)
	if string(body) != "name,email\n" {
		t.Errorf("body = %q", body)
	}
}

func TestReadUpload_Errors(t *testing.T) {
	_, _, err := ReadUpload(httptest.NewRecorder(), multipartUpload(t, "", "", ""), 1<<20)
	if err != errNoFile {
		t.Errorf("missing file: err = %v, want errNoFile", err)
	}

	big := strings.Repeat("x", 4096)
	_, _, err = ReadUpload(httptest.NewRecorder(), multipartUpload(t, "file", "big.csv", big), 1024)
	if err != errUploadTooLarge {
		t.Errorf("large file: err = %v, want errUploadTooLarge", err)
	}
}
