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

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

func TestErrorPlainHasNoMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "meta")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorCarriesConflictReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	report := &models.ConflictReport{
		Conflicts:           []models.Conflict{{Type: models.ConflictTypeRoom, ConflictingAllocationID: "e-1"}},
		HasBlockingConflict: true,
	}
	err := appErrors.Wrap(&models.ConflictError{Message: "collision", Report: report}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict")
	Error(c, err)

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error *appErrors.Error `json:"error"`
		Meta  struct {
			ConflictReport *models.ConflictReport `json:"conflict_report"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Error.Code)
	require.NotNil(t, body.Meta.ConflictReport)
	assert.Equal(t, "e-1", body.Meta.ConflictReport.Conflicts[0].ConflictingAllocationID)
}
