package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-collab-backend/api"
	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/pubsub"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/storage"
)

type stubAuthenticator struct {
	tokens map[string]*models.AuthData
}

func (s *stubAuthenticator) Authenticate(token string) (*models.AuthData, error) {
	if auth, ok := s.tokens[token]; ok {
		return auth, nil
	}
	return nil, errors.New("invalid session token")
}

type testEnv struct {
	router http.Handler
	db     *database.MemoryDatabase
	bucket *storage.MemoryBucket
	broker *pubsub.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		Port:        "4000",
		BaseURL:     "http://localhost:4000",
	}

	db := database.NewMemoryDatabase()
	bucket := storage.NewMemoryBucket("http://localhost:9000/profile-files")
	broker := pubsub.NewBroker()

	projects := services.NewProjectService(db, broker)
	conversations := services.NewConversationService(db, broker)
	users := services.NewUserService(db)
	require.NoError(t, services.RegisterSubscriptions(broker, conversations))
	broker.Start()
	t.Cleanup(broker.Close)

	auth := &stubAuthenticator{tokens: map[string]*models.AuthData{
		"customer-token": {UserID: "cust_1", Role: "customer"},
		"admin-token":    {UserID: "admin_1", Role: "admin"},
		"plain-token":    {UserID: "plain_1", Role: ""},
	}}

	require.NoError(t, db.CreateUser(&models.User{ID: "cust_1", Name: "Customer"}))
	require.NoError(t, db.CreateUser(&models.User{ID: "admin_1", Name: "Admin"}))
	require.NoError(t, db.CreateUser(&models.User{ID: "plain_1", Name: "Plain"}))

	router := api.NewRouter(api.Dependencies{
		Config:        cfg,
		DB:            db,
		Bucket:        bucket,
		Authenticator: auth,
		Projects:      projects,
		Conversations: conversations,
		Users:         users,
		Directory:     nil,
	})

	return &testEnv{router: router, db: db, bucket: bucket, broker: broker}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"status":"ok"`)
}

func TestCreateProjectRequiresRole(t *testing.T) {
	env := newTestEnv(t)

	body := models.CreateProjectRequest{Name: "House", Location: "Oslo"}

	// no token at all
	rec := env.do(t, http.MethodPost, "/projects", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// authenticated but without a customer/admin role
	rec = env.do(t, http.MethodPost, "/projects", "plain-token", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	// no project row was created
	projects, err := env.db.ListProjects()
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/projects", "customer-token",
		models.CreateProjectRequest{Name: "House", Location: "Oslo"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Project
	resp := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, "cust_1", created.OwnerID)

	env.broker.Flush()

	// readOne includes the auto-created discussion conversation
	rec = env.do(t, http.MethodGet, "/projects/"+created.ID, "customer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Project
	resp = decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got.Conversations, 1)
	assert.Equal(t, "House - Discussion", got.Conversations[0].Title)

	// update
	rec = env.do(t, http.MethodPut, "/projects/"+created.ID, "customer-token",
		models.UpdateProjectRequest{Name: "Cabin"})
	require.Equal(t, http.StatusOK, rec.Code)

	// delete requires admin
	rec = env.do(t, http.MethodDelete, "/projects/"+created.ID, "customer-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, "/projects/"+created.ID, "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/projects/"+created.ID, "customer-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectReadsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/projects", "customer-token",
		models.CreateProjectRequest{Name: "Secret", Location: "Vault"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Project
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	env.broker.Flush()

	// neither listing nor readOne leaks data to anonymous callers
	for _, path := range []string{"/projects", "/projects/" + created.ID} {
		rec = env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Secret")
	}

	// an unverifiable token is treated as anonymous here too
	rec = env.do(t, http.MethodGet, "/projects", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Secret")

	rec = env.do(t, http.MethodGet, "/projects", "customer-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Secret")
}

func TestMessagesOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/projects", "customer-token",
		models.CreateProjectRequest{Name: "Chat", Location: "Web"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var project models.Project
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &project))
	env.broker.Flush()

	rec = env.do(t, http.MethodPost, "/conversations", "customer-token",
		models.CreateConversationRequest{ProjectID: project.ID, Title: "Thread"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &conv))

	// batch body returns only the first message
	batch := []map[string]interface{}{
		{"content": "first", "role": "user"},
		{"content": "second", "role": "assistant"},
	}
	rec = env.do(t, http.MethodPost, "/conversations/"+conv.ID+"/messages", "customer-token", batch)
	require.Equal(t, http.StatusCreated, rec.Code)
	var first models.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &first))
	assert.Equal(t, "first", *first.Content)

	rec = env.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages?limit=1", "customer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.PaginatedMessages
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Len(t, page.Messages, 1)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)

	// limit=0 falls back to the default page size instead of erroring
	rec = env.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages?limit=0", "customer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	assert.Len(t, page.Messages, 2)
	assert.False(t, page.HasMore)

	// a non-member gets an error, never message content
	rec = env.do(t, http.MethodGet, "/conversations/"+conv.ID+"/messages", "plain-token", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, rec.Body.String(), "first")
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, fileName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func seedMediaProject(t *testing.T, env *testEnv) {
	t.Helper()
	require.NoError(t, env.db.CreateProject(&models.Project{
		ID:       "proj_1",
		Name:     "Media",
		Location: "Here",
		Status:   models.ProjectStatusActive,
		OwnerID:  "cust_1",
	}))
}

func TestMediaUploadRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	seedMediaProject(t, env)

	payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	body, contentType := multipartBody(t, "file", "a.png", "image/png", payload)

	// single upload path is deliberately unauthenticated
	req := httptest.NewRequest(http.MethodPost, "/upload/proj_1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var uploaded models.UploadedMedia
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &uploaded))
	assert.Equal(t, "a.png", uploaded.Name)
	assert.Equal(t, "image/png", uploaded.MimeType)
	assert.NotEmpty(t, uploaded.ID)

	// the dual write reached the bucket too
	stored, mimeType, ok := env.bucket.Object("a.png")
	require.True(t, ok)
	assert.Equal(t, payload, stored)
	assert.Equal(t, "image/png", mimeType)

	// retrieval returns identical bytes with the stored mime type
	rec = env.do(t, http.MethodGet, "/files/"+uploaded.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())

	// listing endpoints see it
	rec = env.do(t, http.MethodGet, "/db-files", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/files/a.png")

	rec = env.do(t, http.MethodGet, "/bucket-files", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a.png")
}

func TestMediaUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	seedMediaProject(t, env)

	// empty file rejected
	body, contentType := multipartBody(t, "file", "empty.bin", "application/octet-stream", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/proj_1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown project rejected before the body is parsed
	body, contentType = multipartBody(t, "file", "c.txt", "text/plain", []byte("hi"))
	req = httptest.NewRequest(http.MethodPost, "/upload/ghost", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// multi-file path requires auth
	body, contentType = multipartBody(t, "files", "b.txt", "text/plain", []byte("hi"))
	req = httptest.NewRequest(http.MethodPost, "/upload-multiple/proj_1", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a bad token does not block the open single-upload path
	body, contentType = multipartBody(t, "file", "d.txt", "text/plain", []byte("ok"))
	req = httptest.NewRequest(http.MethodPost, "/upload/proj_1", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer garbage-token")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}
