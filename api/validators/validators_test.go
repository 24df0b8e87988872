package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

type lineRequest struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type orderRequest struct {
	SupplierRef string        `json:"supplier_ref" validate:"required,max=64"`
	Lines       []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	body := `{"supplier_ref":"ACME","lines":[{"item_id":"` + uuid.NewString() + `","quantity":"2.5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dest orderRequest
	if err := DecodeJSONBody(req, &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dest.Lines[0].Quantity.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected quantity %s", dest.Lines[0].Quantity)
	}
}

func TestDecodeJSONBodyReportsNestedFieldErrors(t *testing.T) {
	body := `{"supplier_ref":"ACME","lines":[{"item_id":"00000000-0000-0000-0000-000000000000","quantity":"0"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dest orderRequest
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["lines[0].item_id"] != "is required" {
		t.Fatalf("missing item_id detail: %v", details)
	}
	if details["lines[0].quantity"] != "must be greater than 0" {
		t.Fatalf("missing quantity detail: %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"supplier_ref":"ACME","extra":1}`))
	var dest orderRequest
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestParseQueryQuantity(t *testing.T) {
	one := decimal.NewFromInt(1)

	req := httptest.NewRequest(http.MethodGet, "/?quantity=12.5", nil)
	got, err := ParseQueryQuantity(req, "quantity", one)
	if err != nil || !got.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected result %s %v", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryQuantity(req, "quantity", one)
	if err != nil || !got.Equal(one) {
		t.Fatalf("expected default, got %s %v", got, err)
	}

	for _, raw := range []string{"abc", "0", "-3"} {
		req = httptest.NewRequest(http.MethodGet, "/?quantity="+raw, nil)
		if _, err := ParseQueryQuantity(req, "quantity", one); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error got %v", raw, err)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("itemID", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "itemID")
	if err != nil || got != id {
		t.Fatalf("unexpected result %s %v", got, err)
	}
	if _, err := ParseUUIDParam(withParam("nope"), "itemID"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, err := ParseUUIDParam(withParam(""), "itemID"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty param got %v", err)
	}
}
