package apiutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseDayOfWeek(t *testing.T) {
	for _, raw := range []string{"0", "3", " 6 "} {
		if _, err := ParseDayOfWeek(raw); err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
	}
	for _, raw := range []string{"", "-1", "7", "mon"} {
		if _, err := ParseDayOfWeek(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestParsePositiveIntField(t *testing.T) {
	if v, err := ParsePositiveIntField("45", "duration"); err != nil || v != 45 {
		t.Fatalf("got %d, %v", v, err)
	}
	if _, err := ParsePositiveIntField("0", "duration"); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatalf("expected error for unknown field")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"} {"name":"b"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err == nil {
		t.Fatalf("expected error for trailing data")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &dst); err != nil || dst.Name != "a" {
		t.Fatalf("decode: %v (%+v)", err, dst)
	}
}
