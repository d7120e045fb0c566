package shared

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type samplePayload struct {
	EmployeeCode string `json:"employeeCode" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Role         string `json:"role" validate:"omitempty,oneof=manager hr"`
}

func TestBindAndValidateReportsFieldIssues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"email":"nope","role":"ceo"}`))
	rec := httptest.NewRecorder()

	var payload samplePayload
	if BindAndValidate(rec, req, &payload, "req-1") {
		t.Fatal("expected validation failure")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []ValidationIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	fields := map[string]string{}
	for _, issue := range body.Error.Details.Fields {
		fields[issue.Field] = issue.Reason
	}
	if fields["employeeCode"] != "Employee Code is required" {
		t.Fatalf("unexpected employeeCode issue %q", fields["employeeCode"])
	}
	if fields["email"] != "Email must be a valid email address" {
		t.Fatalf("unexpected email issue %q", fields["email"])
	}
	if fields["role"] == "" {
		t.Fatal("expected role issue")
	}
}

func TestBindAndValidateRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"employeeCode":"E1","email":"a@b.co","extra":1}`))
	rec := httptest.NewRecorder()
	var payload samplePayload
	if BindAndValidate(rec, req, &payload, "") {
		t.Fatal("expected rejection")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestValidatorDate(t *testing.T) {
	v := NewValidator()
	if _, ok := v.Date("startDate", "2024-06-10"); !ok {
		t.Fatal("expected valid start date")
	}
	if v.HasIssues() {
		t.Fatalf("unexpected issues: %+v", v.Issues())
	}

	if _, ok := v.Date("startDate", "10/06/2024"); ok {
		t.Fatal("expected invalid date")
	}
	if len(v.Issues()) != 1 || v.Issues()[0].Field != "startDate" {
		t.Fatalf("expected one startDate issue, got %+v", v.Issues())
	}
}

func TestHumanField(t *testing.T) {
	if got := humanField("start_date"); got != "Start Date" {
		t.Fatalf("got %q", got)
	}
	if got := humanField("requestTypeId"); got != "Request Type Id" {
		t.Fatalf("got %q", got)
	}
}
