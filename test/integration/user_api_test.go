package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"user-directory/internal/adapter/db/postgres"
	"user-directory/internal/adapter/gin/handler"
	"user-directory/internal/adapter/gin/router"
	"user-directory/internal/config"
	usecase "user-directory/internal/usecase/user"
)

type userBody struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// setupAPI wires the full stack against an in-memory database: repository,
// usecase (no cache), handler, and the production router with rate limiting
// and the static client disabled.
func setupAPI(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&postgres.UserSchema{}))

	log := zaptest.NewLogger(t)
	repo := postgres.NewUserRepoPG(db, log)
	uc := usecase.New(repo, nil, log)
	h := handler.NewUserHandler(uc, log)

	cfg := &config.Config{
		App: config.AppConfig{
			HTTPPort:               "8080",
			ShutdownTimeoutSeconds: 10,
			StaticDir:              "",
		},
		Logger: config.LoggerConfig{ServiceName: "user-directory"},
		CORS: config.CORSConfig{
			AllowOrigins: []string{"http://localhost:5500"},
		},
	}

	return router.SetupRouter(h, cfg, nil, log)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) userBody {
	t.Helper()
	var u userBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func TestUserAPI_CRUDFlow(t *testing.T) {
	r := setupAPI(t)

	// Create the first user.
	w := doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Ann",
		"email":         "ann@x.com",
		"mobile_number": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	ann := decodeUser(t, w)
	assert.Equal(t, int64(1), ann.ID)
	assert.Equal(t, "Ann", ann.Name)

	// The list contains the new user.
	w = doJSON(t, r, "GET", "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []userBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, ann, users[0])

	// Fetching by ID twice returns the same representation.
	w = doJSON(t, r, "GET", "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeUser(t, w)

	w = doJSON(t, r, "GET", "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decodeUser(t, w))

	// Update the mobile number.
	w = doJSON(t, r, "PUT", "/users/1", map[string]string{
		"name":          "Ann",
		"email":         "ann@x.com",
		"mobile_number": "2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeUser(t, w)
	assert.Equal(t, "2", updated.MobileNumber)

	w = doJSON(t, r, "GET", "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", decodeUser(t, w).MobileNumber)

	// Delete returns the removed user, then the ID is gone.
	w = doJSON(t, r, "DELETE", "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decodeUser(t, w)
	assert.Equal(t, int64(1), deleted.ID)

	w = doJSON(t, r, "GET", "/users/1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	var errResp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "User not found", errResp.Detail)
}

func TestUserAPI_DuplicateCreate(t *testing.T) {
	r := setupAPI(t)

	w := doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Ann",
		"email":         "ann@x.com",
		"mobile_number": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Same email, different mobile.
	w = doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Bob",
		"email":         "ann@x.com",
		"mobile_number": "2",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	var errResp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "User with this email or mobile number already exists", errResp.Detail)

	// Same mobile, different email.
	w = doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Bob",
		"email":         "bob@x.com",
		"mobile_number": "1",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// Neither conflicting request created a row.
	w = doJSON(t, r, "GET", "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []userBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 1)
}

func TestUserAPI_UpdateConflict(t *testing.T) {
	r := setupAPI(t)

	w := doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Ann",
		"email":         "ann@x.com",
		"mobile_number": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, "POST", "/users", map[string]string{
		"name":          "Bob",
		"email":         "bob@x.com",
		"mobile_number": "2",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	bob := decodeUser(t, w)

	// Bob tries to take Ann's email.
	w = doJSON(t, r, "PUT", "/users/2", map[string]string{
		"name":          "Bob",
		"email":         "ann@x.com",
		"mobile_number": "2",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// Bob is unchanged.
	w = doJSON(t, r, "GET", "/users/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bob, decodeUser(t, w))
}

func TestUserAPI_NotFound(t *testing.T) {
	r := setupAPI(t)

	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{"GET", "/users/9999", nil},
		{"PUT", "/users/9999", map[string]string{"name": "Ghost", "email": "ghost@x.com", "mobile_number": "0"}},
		{"DELETE", "/users/9999", nil},
	} {
		w := doJSON(t, r, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)

		var errResp errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "User not found", errResp.Detail)
	}
}

func TestUserAPI_InvalidID(t *testing.T) {
	r := setupAPI(t)

	w := doJSON(t, r, "GET", "/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserAPI_ValidationErrors(t *testing.T) {
	r := setupAPI(t)

	// Missing mobile_number.
	w := doJSON(t, r, "POST", "/users", map[string]string{
		"name":  "Ann",
		"email": "ann@x.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errResp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Detail)
}

func TestUserAPI_EmptyList(t *testing.T) {
	r := setupAPI(t)

	w := doJSON(t, r, "GET", "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestUserAPI_Health(t *testing.T) {
	r := setupAPI(t)

	w := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
