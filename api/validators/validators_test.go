package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

type samplePayload struct {
	Title string `json:"page_title" validate:"required,max=10"`
	URL   string `json:"page_url" validate:"required,url"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"page_title":"","page_url":"nope"}`))
	var dest samplePayload
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["page_title"] != "is required" {
		t.Fatalf("unexpected title message %q", details["page_title"])
	}
	if details["page_url"] != "must be a valid url" {
		t.Fatalf("unexpected url message %q", details["page_url"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"page_title":"a","page_url":"https://x.test","extra":1}`))
	var dest samplePayload
	if err := DecodeJSONBody(req, &dest); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"page_title":"Lamp","page_url":"https://shop.test/lamp"}`))
	var dest samplePayload
	if err := DecodeJSONBody(req, &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Title != "Lamp" {
		t.Fatalf("unexpected title %q", dest.Title)
	}
}

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{name: "default", query: "", want: 2},
		{name: "value", query: "?max_badges=3", want: 3},
		{name: "not numeric", query: "?max_badges=many", wantErr: true},
		{name: "out of range", query: "?max_badges=9", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)
			got, err := ParseQueryInt(req, "max_badges", 2, 1, 4)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestParseQueryIntClampsFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := ParseQueryInt(req, "max_badges", 7, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Fatalf("expected fallback clamped to 4, got %d", got)
	}
}

func TestSanitizeStringCutsByCharacter(t *testing.T) {
	if got := SanitizeString("  héllo wörld  ", 5); got != "héllo" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString(" keep ", 0); got != "keep" {
		t.Fatalf("unexpected %q", got)
	}
}
