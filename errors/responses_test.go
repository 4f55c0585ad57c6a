package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *ConvertError
		expectedCode   int
		expectedError  string
		expectedFields []string
		absentFields   []string
	}{
		{
			name:           "validation error",
			err:            NewValidationError("test-id", MsgTextRequired),
			expectedCode:   http.StatusBadRequest,
			expectedError:  MsgTextRequired,
			expectedFields: []string{"error"},
			absentFields:   []string{"message", "type", "request_id"},
		},
		{
			name:           "internal error in production",
			err:            NewInternalError("test-id", errors.New("boom"), false),
			expectedCode:   http.StatusInternalServerError,
			expectedError:  MsgProcessingFailed,
			expectedFields: []string{"error"},
			absentFields:   []string{"message"},
		},
		{
			name:           "internal error in development",
			err:            NewInternalError("test-id", errors.New("boom"), true),
			expectedCode:   http.StatusInternalServerError,
			expectedError:  MsgProcessingFailed,
			expectedFields: []string{"error", "message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("WriteError() status = %v, want %v", rr.Code, tt.expectedCode)
			}

			contentType := rr.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("WriteError() content-type = %v, want application/json", contentType)
			}

			var response map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response body: %v", err)
			}

			if got, _ := response["error"].(string); got != tt.expectedError {
				t.Errorf("WriteError() error = %v, want %v", got, tt.expectedError)
			}

			for _, field := range tt.expectedFields {
				if _, exists := response[field]; !exists {
					t.Errorf("WriteError() missing expected field: %s", field)
				}
			}
			for _, field := range tt.absentFields {
				if _, exists := response[field]; exists {
					t.Errorf("WriteError() unexpected field: %s", field)
				}
			}
		})
	}
}

func TestWriteErrorKeepsHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Access-Control-Allow-Origin", "*")

	WriteError(rr, NewRateLimitError("test-id", 12))

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("existing header lost, got %q", got)
	}
	if got := rr.Header().Get("Retry-After"); got != "12" {
		t.Errorf("Retry-After = %q, want 12", got)
	}
}

func TestConvertError_Response(t *testing.T) {
	resp := NewInternalError("id", errors.New("bad input"), true).Response()

	if resp.Error != MsgProcessingFailed || resp.Message != "bad input" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
