package activities

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/communitymeet/backend/pkg/clock"
)

func calendarContext(query string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/activities/calendar"+query, nil)
	return c, rec
}

func TestCalendarRequiresDateRange(t *testing.T) {
	h := NewHandler(nil, nil, nil, clock.System{}, nil)

	for _, query := range []string{
		"",
		"?from=2026-09-01",
		"?to=2026-09-30",
		"?from=2026-09-30&to=2026-09-01",
	} {
		c, rec := calendarContext(query)
		h.Calendar(c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
