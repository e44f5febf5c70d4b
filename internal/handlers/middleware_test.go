package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"reflow_oven/internal/service"
)

// minimal router wiring only the middleware + a protected endpoint that
// echoes what it sees on both contexts
func newMiddlewareOnlyRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/secure", h.requireOperator, func(c *gin.Context) {
		fromCtx, _ := service.OperatorFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"operator": operatorID(c), "request_operator": fromCtx})
	})
	return r
}

func TestRequireOperator_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		parseErr error
		errMsg   string
	}{
		{name: "missing header", errMsg: "missing Authorization header"},
		{name: "invalid scheme", header: "Token abc", errMsg: "invalid Authorization header format"},
		{name: "bearer without token", header: "Bearer", errMsg: "invalid Authorization header format"},
		{name: "bearer with blank token", header: "Bearer   ", errMsg: "invalid Authorization header format"},
		{name: "expired token", header: "Bearer expired", parseErr: errors.New("expired"), errMsg: "invalid or expired token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 5, parseErr: tc.parseErr}
			r := newMiddlewareOnlyRouter(&service.Service{Authorization: auth})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status: got %d, want 401 (body=%s)", w.Code, w.Body.String())
			}
			var out struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.errMsg {
				t.Fatalf("error message: got %q, want %q", out.Error, tc.errMsg)
			}
		})
	}
}

func TestRequireOperator_SetsOperatorOnBothContexts(t *testing.T) {
	for _, header := range []string{"Bearer good-token", "bearer good-token"} {
		auth := &mockAuth{parseID: 123}
		r := newMiddlewareOnlyRouter(&service.Service{Authorization: auth})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%q: status %d; body=%s", header, w.Code, w.Body.String())
		}
		var resp struct {
			Operator        int `json:"operator"`
			RequestOperator int `json:"request_operator"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Operator != 123 || resp.RequestOperator != 123 {
			t.Fatalf("%q: unexpected response %+v", header, resp)
		}
		if auth.lastParseToken != "good-token" {
			t.Fatalf("ParseToken got %q, want %q", auth.lastParseToken, "good-token")
		}
	}
}
