package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query         string
		page, perPage int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&per_page=50", 3, 50},
		{"?page=-2&per_page=1000", 1, DefaultPageSize},
		{"?page=abc&per_page=0", 1, DefaultPageSize},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/blocks"+tc.query, nil)

			page, perPage := GetPaginationParams(c)
			assert.Equal(t, tc.page, page)
			assert.Equal(t, tc.perPage, perPage)
		})
	}
}
