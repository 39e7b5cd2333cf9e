package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeDuplicateItem, status: http.StatusConflict, publicMsg: "already in wishlist"},
		{code: CodeMissingReference, status: http.StatusConflict, publicMsg: "item reference is stale, refresh and try again"},
		{code: CodePaymentRequired, status: http.StatusPaymentRequired, publicMsg: "payment required", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "remote service unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "url is required")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "url is required" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	base.WithDetails(map[string]any{"field": "url"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "list items")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestCodeHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeDuplicateItem, "already in wishlist"))
	if !IsCode(err, CodeDuplicateItem) {
		t.Fatalf("expected IsCode to find wrapped code")
	}
	if CodeOf(err) != CodeDuplicateItem {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("plain errors should map to internal")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "wishlist_items_wishlist_id_product_id_key", TableName: "wishlist_items"}
	err := Wrap(CodeDuplicateItem, pgErr, "insert membership")

	dump := Dump(err)
	if dump.Code != CodeDuplicateItem {
		t.Fatalf("unexpected dump code %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGTable != "wishlist_items" {
		t.Fatalf("postgres fields not extracted: %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %v", dump.Chain)
	}

	fields := dump.Fields()
	if fields["pg_constraint"] != "wishlist_items_wishlist_id_product_id_key" {
		t.Fatalf("fields missing constraint: %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty values should be omitted: %v", fields)
	}
}
