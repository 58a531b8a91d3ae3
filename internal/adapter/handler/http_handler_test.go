package handler

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestServer(auth *TenantAuth) *httptest.Server {
	mux := http.NewServeMux()
	NewHTTPHandler(newTestService(), nil).Register(mux)
	return httptest.NewServer(auth.Middleware(mux))
}

func postAdjust(t *testing.T, srv *httptest.Server, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/commands/inventory/adjust", bytes.NewReader(data))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAdjustInventory_HTTP(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"success", AdjustHTTPRequest{orgID, jeansID, -5, "cmd-1"}, http.StatusOK, ""},
		{"insufficient stock", AdjustHTTPRequest{orgID, jeansID, -30, "cmd-2"}, http.StatusConflict, codeInsufficientStock},
		{"unknown inventory", AdjustHTTPRequest{orgID, uuid.NewString(), 1, "cmd-3"}, http.StatusNotFound, codeNotFound},
		{"foreign tenant", AdjustHTTPRequest{uuid.NewString(), jeansID, 1, "cmd-4"}, http.StatusNotFound, codeNotFound},
		{"bad uuid", AdjustHTTPRequest{"acme", jeansID, 1, "cmd-5"}, http.StatusBadRequest, codeInvalidArgument},
		{"missing command id", AdjustHTTPRequest{orgID, jeansID, 1, ""}, http.StatusBadRequest, codeInvalidArgument},
		{"delta beyond column", AdjustHTTPRequest{orgID, jeansID, 3_000_000_000, "cmd-6"}, http.StatusBadRequest, codeInvalidArgument},
		{"level beyond column", AdjustHTTPRequest{orgID, jeansID, math.MaxInt32, "cmd-7"}, http.StatusBadRequest, codeInvalidArgument},
		{"malformed body", "not an object", http.StatusBadRequest, codeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postAdjust(t, srv, "", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%v)", tt.wantStatus, resp.StatusCode, out)
			}
			if tt.wantCode != "" && out["code"] != tt.wantCode {
				t.Errorf("expected code %q, got %v", tt.wantCode, out["code"])
			}
		})
	}
}

func TestAdjustInventory_HTTPReturnsNewLevel(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, out := postAdjust(t, srv, "", AdjustHTTPRequest{orgID, jeansID, -5, "cmd-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if out["ok"] != true || out["newLevel"] != float64(15) {
		t.Errorf("unexpected body %v", out)
	}

	// same command id replays the recorded result
	_, out = postAdjust(t, srv, "", AdjustHTTPRequest{orgID, jeansID, -5, "cmd-1"})
	if out["newLevel"] != float64(15) {
		t.Errorf("replay returned %v", out)
	}
}

func TestGetInventory_HTTP(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/queries/inventory/" + orgID + "/Jeans")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got InventoryHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ProductName != "Jeans" || got.StockLevel != 20 || !got.UpdatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("unexpected body %+v", got)
	}

	missing, _ := srv.Client().Get(srv.URL + "/api/queries/inventory/" + orgID + "/Socks")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown product, got %d", missing.StatusCode)
	}

	other, _ := srv.Client().Get(srv.URL + "/api/queries/inventory/" + uuid.NewString() + "/Jeans")
	other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for another tenant, got %d", other.StatusCode)
	}
}

func TestListProjectInventory_HTTP(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/queries/inventory/" + orgID + "/projects/" + projectID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var got []InventoryHTTPResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || len(got) != 1 || got[0].ProductName != "Jeans" {
		t.Errorf("unexpected response %d %+v", resp.StatusCode, got)
	}
}

func TestTenantAuth_HTTP(t *testing.T) {
	auth := NewTenantAuth("test-secret", "inventory")
	srv := newTestServer(auth)
	defer srv.Close()

	own, err := auth.Issue(orgID, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	foreign, _ := auth.Issue(uuid.NewString(), time.Minute)
	forged, _ := NewTenantAuth("other-secret", "inventory").Issue(orgID, time.Minute)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong signature", forged, http.StatusUnauthorized},
		{"other organization", foreign, http.StatusForbidden},
		{"own organization", own, http.StatusOK},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdID := "auth-cmd-" + string(rune('a'+i))
			resp, out := postAdjust(t, srv, tt.token, AdjustHTTPRequest{orgID, jeansID, 1, cmdID})
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d (%v)", tt.wantStatus, resp.StatusCode, out)
			}
		})
	}
}

func TestTenantAuth_DisabledWithoutSecret(t *testing.T) {
	if NewTenantAuth("", "") != nil {
		t.Fatal("expected nil auth for empty secret")
	}
}
