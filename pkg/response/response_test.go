package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/middleware/requestid"
)

func TestErrorEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrNotFound, "report card not found")) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body struct {
		Error *appErrors.Error       `json:"error"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "report card not found", body.Error.Message)
	assert.Equal(t, "req-42", body.Meta["request_id"])
}

func TestErrorRecordsServerFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t,
		`attachment; filename="Raport_Siti_1_2024-2025.pdf"; filename*=UTF-8''Raport_Siti_1_2024-2025.pdf`,
		ContentDisposition("Raport_Siti_1_2024-2025.pdf"))
	assert.Equal(t,
		`attachment; filename="Raport_Zahr__.pdf"; filename*=UTF-8''Raport_Zahr%C3%A4%22.pdf`,
		ContentDisposition(`Raport_Zahrä".pdf`))
}
