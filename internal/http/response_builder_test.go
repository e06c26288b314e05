package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should be absent without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerRecordsChanged(2, 7).
		TriggerFormReset().
		TriggerSuccessNotification("Saved 2 records").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventRecordsChanged, EventFormReset, EventNotification} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}

	var changed map[string]int
	if err := json.Unmarshal(triggers[EventRecordsChanged], &changed); err != nil {
		t.Fatalf("records:changed payload: %v", err)
	}
	if changed["saved"] != 2 || changed["total"] != 7 {
		t.Errorf("records:changed = %v", changed)
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Header("HX-Retarget", "#category-result").
		BodyHTML("<p>x</p>").
		Write(w)

	if w.Header().Get("HX-Retarget") != "#category-result" {
		t.Errorf("HX-Retarget = %q", w.Header().Get("HX-Retarget"))
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Invalid input"), http.StatusBadRequest, `<div class="error">Invalid input</div>`},
		{"unprocessable", UnprocessableEntityError("Row 2: invalid amount"), http.StatusUnprocessableEntity, `<div class="error">Row 2: invalid amount</div>`},
		{"conflict", ConflictError("exists"), http.StatusConflict, `<div class="error">exists</div>`},
		{"internal", InternalServerError("Something broke"), http.StatusInternalServerError, `<div class="error">Something broke</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}

func TestNotificationTypes(t *testing.T) {
	tests := []struct {
		notifType NotificationType
		want      string
	}{
		{NotificationSuccess, "success"},
		{NotificationError, "error"},
		{NotificationWarning, "warning"},
		{NotificationInfo, "info"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewHTMXResponse().
			TriggerNotification(tt.notifType, "test", 1000).
			Write(w)

		trigger := w.Header().Get("HX-Trigger")
		if !strings.Contains(trigger, `"type":"`+tt.want+`"`) {
			t.Errorf("Notification type %q not found in trigger: %s", tt.want, trigger)
		}
	}
}
