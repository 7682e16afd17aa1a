package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parking-service/internal/auth"
	"parking-service/internal/model"
)

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	parser := auth.NewParser("secret")
	token, err := parser.Issue(uuid.New(), model.RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	router := gin.New()
	router.GET("/me", Auth(parser), func(c *gin.Context) {
		principal, ok := MustPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, string(principal.Role))
	})

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "bearer header", target: "/me", header: "Bearer " + token, want: http.StatusOK},
		{name: "query token", target: "/me?access_token=" + token, want: http.StatusOK},
		{name: "missing", target: "/me", want: http.StatusUnauthorized},
		{name: "wrong scheme", target: "/me", header: "Basic " + token, want: http.StatusUnauthorized},
		{name: "bad token", target: "/me", header: "Bearer nope", want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
