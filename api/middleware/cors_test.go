package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func preflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	return req
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://panel.example"})(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, preflight("https://panel.example"))
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://panel.example" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
}

func TestCORSRefusesEverythingWithoutOrigins(t *testing.T) {
	handler := CORS(nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, preflight("https://evil.example"))
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header, got %q", got)
	}
}
