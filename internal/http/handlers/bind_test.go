package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/http/handlers"
	"github.com/geocoder89/userservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func newRegisterRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.MaxBodyBytes(256))
	r.POST("/register", func(ctx *gin.Context) {
		var req user.CreateUserRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postRegister(t *testing.T, body string) (*httptest.ResponseRecorder, bindErrorResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	newRegisterRouter().ServeHTTP(w, req)

	var resp bindErrorResponse
	if w.Code != http.StatusCreated {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	w, resp := postRegister(t, `{"fullName":"Jane","password":"abc"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if resp.Success {
		t.Fatalf("expected success=false")
	}
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}
	if resp.Message == "" || resp.Message != resp.Error.Message {
		t.Fatalf("top-level message should mirror error.message: %q vs %q", resp.Message, resp.Error.Message)
	}

	wantRules := map[string]string{
		"password":    "min",
		"dateOfBirth": "required",
		"email":       "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	w, resp := postRegister(t, `{"fullName":"Jane","dateOfBirth":"1995-05-20","email":"jane@example.com","password":42}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "password" {
		t.Fatalf("expected detail field to be password, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type rule in details.fields: %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_MalformedAndEmptyBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "empty_body"},
		{"syntax", `{"fullName":`, "invalid_json_syntax"},
		{"garbage", `{"fullName" "x"}`, "invalid_json_syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postRegister(t, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d body=%s", w.Code, w.Body.String())
			}
			if resp.Error.Details.JSON != tt.want {
				t.Fatalf("details.json = %q, want %q", resp.Error.Details.JSON, tt.want)
			}
		})
	}
}

func TestBindJSON_OversizedBody(t *testing.T) {
	body := `{"fullName":"` + strings.Repeat("a", 512) + `"}`

	w, resp := postRegister(t, body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want 413", w.Code)
	}
	if resp.Error.Code != "payload_too_large" {
		t.Fatalf("unexpected code %q", resp.Error.Code)
	}
}

func TestBindJSON_PasswordLimitCountsBytes(t *testing.T) {
	// 30 runes, 75 bytes
	password := strings.Repeat("é€", 15)
	w, resp := postRegister(t, `{"fullName":"Jane","dateOfBirth":"1995-05-20","email":"jane@example.com","password":"`+password+`"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if len(resp.Error.Details.Fields) != 1 {
		t.Fatalf("expected one field error, got %+v", resp.Error.Details.Fields)
	}
	fieldErr := resp.Error.Details.Fields[0]
	if fieldErr.Field != "password" || fieldErr.Rule != "maxbytes" || fieldErr.Param != "72" {
		t.Fatalf("unexpected field error: %+v", fieldErr)
	}

	// 36 runes, exactly 72 bytes
	w, _ = postRegister(t, `{"fullName":"Jane","dateOfBirth":"1995-05-20","email":"jane@example.com","password":"`+strings.Repeat("é", 36)+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("72-byte password rejected: %d body=%s", w.Code, w.Body.String())
	}
}
