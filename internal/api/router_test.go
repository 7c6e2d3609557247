package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/auth"
	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/services"
	"github.com/propertydesk/propertydesk/internal/services/servicetest"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("PD_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}

const (
	propertyID  = "property-1"
	landlordID  = "landlord-1"
	tenantID    = "tenant-1"
	neighbourID = "tenant-2"
	strangerID  = "stranger-1"
)

type apiFixture struct {
	engine      *gin.Engine
	inspections *servicetest.Inspections
	reports     *servicetest.ConditionReports
	files       *servicetest.Files
	db          sqlmock.Sqlmock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	policy, err := access.NewPolicy()
	require.NoError(t, err)

	props := servicetest.NewProperties()
	users := servicetest.NewUsers(
		&models.User{ID: landlordID, Name: "Lena Landlord", Role: string(auth.RoleLandlord)},
		&models.User{ID: tenantID, Name: "Tess Tenant", Role: string(auth.RoleTenant)},
		&models.User{ID: neighbourID, Name: "Noor Neighbour", Role: string(auth.RoleTenant)},
		&models.User{ID: strangerID, Name: "Sam Stranger", Role: string(auth.RoleTenant)},
	)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, props.Create(t.Context(), &models.Property{
		ID:         propertyID,
		LandlordID: landlordID,
		TenantIDs:  pq.StringArray{tenantID, neighbourID},
		Title:      "Two bed flat",
		Address:    "1 High Street",
		City:       "Leeds",
		Rent:       950,
		Bedrooms:   2,
		Status:     models.PropertyLet,
		CreatedBy:  landlordID,
		CreatedAt:  now,
		UpdatedBy:  landlordID,
		UpdatedAt:  now,
	}))

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &apiFixture{
		inspections: servicetest.NewInspections(),
		reports:     servicetest.NewConditionReports(),
		files:       servicetest.NewFiles(),
		db:          mock,
	}
	deps := services.Deps{Policy: policy, Properties: props, Users: users}
	svc := Services{
		Properties:  services.NewPropertyService(deps, servicetest.NewCache()),
		Conditions:  services.NewConditionReportService(deps, f.reports, f.files),
		Inspections: services.NewInspectionService(deps, f.inspections),
		Reviews:     services.NewReviewService(deps, servicetest.NewReviews()),
		Maintenance: services.NewMaintenanceService(deps, servicetest.NewMaintenance()),
		Landlords:   services.NewLandlordService(deps, servicetest.NewLandlordProfiles()),
	}
	cfg := &config.Config{}
	cfg.Server.MaxUploadMB = 1
	cfg.Security.CORS.AllowedOrigins = []string{"https://app.propertydesk.test"}
	f.engine = newEngine(cfg, svc, Infra{DB: db, Storage: f.files, Users: users})
	return f
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateJWT(auth.Identity{UserID: userID, Role: string(role)}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, target, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func dataField[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type recordData struct {
	ID               string `json:"id"`
	SignedByLandlord bool   `json:"signedByLandlord"`
	TenantConfirmed  bool   `json:"tenantConfirmed"`
	UpdatedBy        string `json:"updatedBy"`
	Attachments      []string
}

func (f *apiFixture) createReport(t *testing.T) string {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/api/v1/conditions", token(t, landlordID, auth.RoleLandlord), gin.H{
		"propertyId": propertyID,
		"tenantId":   tenantID,
		"type":       "move_in",
		"items":      []gin.H{{"area": "Kitchen", "condition": "good"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataField[recordData](t, env).ID
}

func (f *apiFixture) createInspection(t *testing.T) string {
	t.Helper()
	w, env := f.do(t, http.MethodPost, "/api/v1/inspections", token(t, landlordID, auth.RoleLandlord), gin.H{
		"propertyId":    propertyID,
		"tenantId":      tenantID,
		"type":          "routine",
		"scheduledDate": "2025-06-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataField[recordData](t, env).ID
}

// ---------------------------------------------------------------------------
// Lifecycle scenarios
// ---------------------------------------------------------------------------

func TestOwnerCreatesConditionReport(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/conditions", token(t, landlordID, auth.RoleLandlord), gin.H{
		"propertyId": propertyID,
		"type":       "move_in",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", env.Status)
	rec := dataField[recordData](t, env)
	assert.True(t, rec.SignedByLandlord)
	assert.NotEmpty(t, rec.ID)
}

func TestStrangerCannotViewConditionReport(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createReport(t)

	w, env := f.do(t, http.MethodGet, "/api/v1/conditions/"+id, token(t, strangerID, auth.RoleTenant), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Not authorized to view this condition report", env.Message)
	assert.Empty(t, env.Data)
}

func TestCounterpartyCannotReschedule(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInspection(t)
	before := f.inspections.Get(id)

	w, env := f.do(t, http.MethodPatch, "/api/v1/inspections/"+id, token(t, tenantID, auth.RoleTenant), gin.H{
		"scheduledDate": "2025-01-01",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid updates provided", env.Message)
	assert.Equal(t, before, f.inspections.Get(id))
}

func TestOnlyAssignedTenantConfirmsInspection(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createInspection(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/inspections/"+id+"/confirm", token(t, neighbourID, auth.RoleTenant), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, f.inspections.Get(id).TenantConfirmed)

	w, env := f.do(t, http.MethodPost, "/api/v1/inspections/"+id+"/confirm", token(t, tenantID, auth.RoleTenant), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := dataField[recordData](t, env)
	assert.True(t, rec.TenantConfirmed)
	assert.Equal(t, tenantID, rec.UpdatedBy)
}

func TestDeleteTwice(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createReport(t)
	owner := token(t, landlordID, auth.RoleLandlord)

	w, env := f.do(t, http.MethodDelete, "/api/v1/conditions/"+id, owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Condition report deleted successfully", env.Message)

	w, env = f.do(t, http.MethodDelete, "/api/v1/conditions/"+id, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Condition report not found", env.Message)
}

// ---------------------------------------------------------------------------
// Surface behaviour
// ---------------------------------------------------------------------------

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/conditions", "", gin.H{"propertyId": propertyID, "type": "move_in"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing authorization header", env.Message)
}

func TestPublicListingWithoutToken(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/v1/properties?city=leeds", "", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := dataField[struct {
		Total int `json:"total"`
	}](t, env)
	assert.Equal(t, 1, list.Total)
}

func TestListingRejectsBadRent(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/v1/properties?min_rent=cheap", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "min_rent must be a number", env.Message)
}

func TestMalformedBody(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, landlordID, auth.RoleLandlord))
	w := httptest.NewRecorder()

	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func uploadAttachment(t *testing.T, f *apiFixture, id, bearer string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "kitchen photo.txt")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conditions/"+id+"/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createReport(t)
	owner := token(t, landlordID, auth.RoleLandlord)

	w := uploadAttachment(t, f, id, owner, []byte("scuff on worktop"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attachments := f.reports.Get(id).Attachments
	require.Len(t, attachments, 1)

	w, _ = f.do(t, http.MethodGet, "/api/v1/files/"+attachments[0], token(t, tenantID, auth.RoleTenant), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scuff on worktop", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w, env := f.do(t, http.MethodGet, "/api/v1/files/"+attachments[0], token(t, strangerID, auth.RoleTenant), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to view this condition report", env.Message)

	w, _ = f.do(t, http.MethodGet, "/api/v1/files/elsewhere/secret.txt", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachmentRequiresFile(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createReport(t)

	w, env := f.do(t, http.MethodPost, "/api/v1/conditions/"+id+"/attachments", token(t, landlordID, auth.RoleLandlord), gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A file is required in the 'file' form field", env.Message)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	f := newAPIFixture(t)
	owner := token(t, landlordID, auth.RoleLandlord)

	w, env := f.do(t, http.MethodGet, "/api/v1/conditions/not-a-uuid", token(t, strangerID, auth.RoleTenant), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Condition report not found", env.Message)

	w, env = f.do(t, http.MethodPost, "/api/v1/conditions", owner, gin.H{"propertyId": "x", "type": "move_in"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Property not found", env.Message)

	w, _ = f.do(t, http.MethodGet, "/api/v1/inspections/property/x", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerPanicUsesEnvelope(t *testing.T) {
	f := newAPIFixture(t)
	f.engine.GET("/api/v1/explode", func(*gin.Context) { panic("nil map write") })

	w, env := f.do(t, http.MethodGet, "/api/v1/explode", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/v1/nothing-here", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", env.Message)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/conditions", nil)
	req.Header.Set("Origin", "https://app.propertydesk.test")
	w := httptest.NewRecorder()

	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.propertydesk.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORSUnknownOrigin(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()

	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// ---------------------------------------------------------------------------
// System routes
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	f.db.ExpectPing()

	w, _ := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	f.db.ExpectPing().WillReturnError(errors.New("connection refused"))
	w, _ = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NoError(t, f.db.ExpectationsWereMet())
}

func TestReady(t *testing.T) {
	f := newAPIFixture(t)
	f.db.ExpectPing()

	w, _ := f.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Ready  bool              `json:"ready"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, map[string]string{"database": "healthy", "storage": "healthy"}, body.Checks)

	f.db.ExpectPing().WillReturnError(errors.New("connection refused"))
	w, _ = f.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database not ready")
}

func TestVersion(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, http.MethodGet, "/version", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"api_version":"v1"`)
	assert.Contains(t, w.Body.String(), `"version":"`+Version+`"`)
}
