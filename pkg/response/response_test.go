package response

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSuccess_JSONFormat(t *testing.T) {
	resp := Success(map[string]string{"id": "123"})

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != true {
		t.Errorf("Expected success=true, got %v", parsed["success"])
	}
	if _, ok := parsed["error"]; ok {
		t.Error("Expected error field to be omitted")
	}
	if _, ok := parsed["meta"]; ok {
		t.Error("Expected meta field to be omitted")
	}
}

func TestProblem_JSONFormat(t *testing.T) {
	resp := Problem(ErrCodeEventNotFound, "Event not found", "no event with id 42")

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != false {
		t.Errorf("Expected success=false, got %v", parsed["success"])
	}

	errorObj, ok := parsed["error"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected error object")
	}
	if errorObj["code"] != ErrCodeEventNotFound {
		t.Errorf("Expected code %s, got %v", ErrCodeEventNotFound, errorObj["code"])
	}
	if errorObj["message"] != "Event not found" {
		t.Errorf("Expected message 'Event not found', got %v", errorObj["message"])
	}
	if errorObj["detail"] != "no event with id 42" {
		t.Errorf("Expected detail, got %v", errorObj["detail"])
	}
	if _, ok := errorObj["details"]; ok {
		t.Error("Expected details field to be omitted")
	}
}

func TestError_OmitsDetail(t *testing.T) {
	resp := Error(ErrCodeBadRequest, "Invalid input")

	jsonBytes, _ := json.Marshal(resp)
	var parsed struct {
		Error map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if _, ok := parsed.Error["detail"]; ok {
		t.Error("Expected detail field to be omitted")
	}
}

func TestPaginated_TotalPagesCalculation(t *testing.T) {
	tests := []struct {
		name          string
		total         int64
		perPage       int
		expectedPages int
	}{
		{"exact division", 20, 10, 2},
		{"with remainder", 25, 10, 3},
		{"less than page", 5, 10, 1},
		{"zero items", 0, 10, 0},
		{"zero per page", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Paginated(nil, 1, tt.perPage, tt.total)
			if resp.Meta.TotalPages != tt.expectedPages {
				t.Errorf("Expected %d pages, got %d", tt.expectedPages, resp.Meta.TotalPages)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeEventRequired, http.StatusBadRequest},
		{ErrCodeEventInvalid, http.StatusBadRequest},
		{ErrCodeEventNotFound, http.StatusNotFound},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if status := GetHTTPStatus(tt.code); status != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, status)
			}
		})
	}
}

func TestCommonErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) *Response
		message string
		code    string
	}{
		{"BadRequest", BadRequest, "bad input", ErrCodeBadRequest},
		{"Unauthorized", Unauthorized, "", ErrCodeUnauthorized},
		{"Forbidden", Forbidden, "", ErrCodeForbidden},
		{"NotFound", NotFound, "", ErrCodeNotFound},
		{"InternalError", InternalError, "", ErrCodeInternalError},
		{"ServiceUnavailable", ServiceUnavailable, "", ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.fn(tt.message)
			if resp.Success {
				t.Error("Expected success to be false")
			}
			if resp.Error == nil {
				t.Fatal("Expected error to be set")
			}
			if resp.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, resp.Error.Code)
			}
			if resp.Error.Message == "" {
				t.Error("Expected message to be set (with default)")
			}
		})
	}
}

func TestValidationFailed(t *testing.T) {
	resp := ValidationFailed(map[string]string{"tables": "required"})

	if resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeValidationFailed, resp.Error.Code)
	}
	if resp.Error.Details["tables"] != "required" {
		t.Errorf("Expected tables detail, got %v", resp.Error.Details)
	}
}
