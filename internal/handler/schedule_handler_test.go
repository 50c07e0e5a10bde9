package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
	"github.com/noah-isme/sma-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

type scheduleServiceMock struct {
	listFilter models.ScheduleFilter
	updateErr  error
	bulkReq    service.BulkCreateSchedulesRequest
	classID    string
}

func (m *scheduleServiceMock) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	m.listFilter = filter
	return []models.Schedule{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *scheduleServiceMock) ListByClass(ctx context.Context, classID string) ([]models.Schedule, error) {
	m.classID = classID
	return []models.Schedule{{ID: "s-1", ClassID: classID}}, nil
}

func (m *scheduleServiceMock) ListByTeacher(ctx context.Context, teacherID string) ([]models.Schedule, error) {
	return []models.Schedule{}, nil
}

func (m *scheduleServiceMock) Create(ctx context.Context, req service.CreateScheduleRequest) (*service.ScheduleResult, error) {
	return &service.ScheduleResult{Schedule: &models.Schedule{ID: "s-new"}, Report: &models.ConflictReport{Conflicts: []models.Conflict{}}}, nil
}

func (m *scheduleServiceMock) Update(ctx context.Context, id string, req service.UpdateScheduleRequest) (*service.ScheduleResult, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &service.ScheduleResult{Schedule: &models.Schedule{ID: id}}, nil
}

func (m *scheduleServiceMock) Check(ctx context.Context, id string, req service.CreateScheduleRequest) (*models.ConflictReport, error) {
	return &models.ConflictReport{Conflicts: []models.Conflict{}}, nil
}

func (m *scheduleServiceMock) BulkCreate(ctx context.Context, req service.BulkCreateSchedulesRequest) (*service.BulkCreateSchedulesResult, error) {
	m.bulkReq = req
	return &service.BulkCreateSchedulesResult{Created: []models.Schedule{}}, nil
}

func (m *scheduleServiceMock) Delete(ctx context.Context, id string) error {
	return nil
}

const schedulePayload = `{"term_id":"term-1","class_id":"class-a","subject_id":"math","teacher_id":"t-1","day_of_week":"MONDAY","start_time":"07:30","end_time":"09:00","room":"R1"}`

func newScheduleRouter(svc scheduleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewScheduleHandler(svc)
	r := gin.New()
	r.GET("/schedules", h.List)
	r.POST("/schedules", h.Create)
	r.POST("/schedules/bulk", h.BulkCreate)
	r.POST("/schedules/conflicts/check", h.Check)
	r.PUT("/schedules/:id", h.Update)
	r.DELETE("/schedules/:id", h.Delete)
	r.GET("/classes/:id/schedules", h.ListByClass)
	return r
}

func TestScheduleHandlerListUppercasesDay(t *testing.T) {
	mockSvc := &scheduleServiceMock{}
	r := newScheduleRouter(mockSvc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules?termId=term-1&dayOfWeek=monday&limit=50", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MONDAY", mockSvc.listFilter.DayOfWeek)
	assert.Equal(t, 50, mockSvc.listFilter.PageSize)
}

func TestScheduleHandlerCreate(t *testing.T) {
	r := newScheduleRouter(&scheduleServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewBufferString(schedulePayload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"s-new"`)
	assert.Contains(t, w.Body.String(), `"conflict_report"`)
}

func TestScheduleHandlerUpdateStaleSnapshot(t *testing.T) {
	report := &models.ConflictReport{Conflicts: []models.Conflict{{Type: models.ConflictTypeFaculty}}, HasBlockingConflict: true}
	staleErr := appErrors.Wrap(&models.StaleSnapshotError{Message: "changed", Report: report}, appErrors.ErrStaleSnapshot.Code, appErrors.ErrStaleSnapshot.Status, appErrors.ErrStaleSnapshot.Message)
	r := newScheduleRouter(&scheduleServiceMock{updateErr: staleErr})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/schedules/s-1", bytes.NewBufferString(schedulePayload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error appErrors.Error        `json:"error"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "STALE_SNAPSHOT", body.Error.Code)
	assert.Equal(t, true, body.Meta["retryable"])
	assert.NotNil(t, body.Meta["conflict_report"])
}

func TestScheduleHandlerBulkCreate(t *testing.T) {
	mockSvc := &scheduleServiceMock{}
	r := newScheduleRouter(mockSvc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/bulk", bytes.NewBufferString(`{"partial_on_error":true,"items":[`+schedulePayload+`]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.bulkReq.PartialOnError)
	assert.Len(t, mockSvc.bulkReq.Items, 1)
}

func TestScheduleHandlerListByClass(t *testing.T) {
	mockSvc := &scheduleServiceMock{}
	r := newScheduleRouter(mockSvc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classes/class-a/schedules", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-a", mockSvc.classID)
}
