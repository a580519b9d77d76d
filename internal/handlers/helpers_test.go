package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/validator"
)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// --- tests ---

func TestRespondWithError(t *testing.T) {
	t.Run("validation_error_lists_fields", func(t *testing.T) {
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			respondWithError(c, apperrors.Validation(
				apperrors.FieldError{Field: "owner", Reason: "required"},
				apperrors.FieldError{Field: "client", Reason: "required"},
			))
		})

		rec := doRequest(r, http.MethodGet, "/", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		assertErrorCode(t, result, "VALIDATION_FAILED")
		fields := result["error"].(map[string]interface{})["fields"].([]interface{})
		if len(fields) != 2 {
			t.Fatalf("expected 2 field errors, got %v", fields)
		}
		if fields[0].(map[string]interface{})["field"] != "owner" {
			t.Errorf("expected owner first, got %v", fields[0])
		}
	})

	t.Run("wrapped_error_hides_internal", func(t *testing.T) {
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			respondWithError(c, apperrors.Wrap(apperrors.ErrStoreUnavailable, errors.New("dial tcp 10.0.0.1:5432")))
		})

		rec := doRequest(r, http.MethodGet, "/", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "10.0.0.1") {
			t.Errorf("internal error leaked: %s", rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "STORE_UNAVAILABLE")
	})

	t.Run("unexpected_error_is_internal", func(t *testing.T) {
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			respondWithError(c, errors.New("boom"))
		})

		rec := doRequest(r, http.MethodGet, "/", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}
