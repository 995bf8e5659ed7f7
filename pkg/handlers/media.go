package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/models"
	"project-collab-backend/pkg/storage"
	"project-collab-backend/pkg/utils"
)

// MediaHandler handles file ingestion and retrieval. Uploads dual-write to
// the bucket and the database; the two writes are not transactional.
type MediaHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	bucket storage.Bucket
}

// NewMediaHandler 创建媒体处理器
func NewMediaHandler(cfg *config.Config, db database.DatabaseInterface, bucket storage.Bucket) *MediaHandler {
	return &MediaHandler{config: cfg, db: db, bucket: bucket}
}

type bufferedFile struct {
	name     string
	mimeType string
	data     []byte
}

// readFiles walks the multipart stream and buffers every file part fully in
// memory. maxFiles <= 0 means no cap.
func readFiles(r *http.Request, maxFiles int) ([]bufferedFile, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("expected multipart body: %w", err)
	}

	files := []bufferedFile{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart stream: %w", err)
		}

		if part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", part.FileName(), err)
		}

		mimeType := part.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		files = append(files, bufferedFile{
			name:     part.FileName(),
			mimeType: mimeType,
			data:     data,
		})

		if maxFiles > 0 && len(files) >= maxFiles {
			break
		}
	}
	return files, nil
}

// POST /upload/{project_id}
// Single-file upload. Deliberately unauthenticated. The bucket object is
// keyed by filename while the database row is keyed by a generated id.
func (h *MediaHandler) Save(w http.ResponseWriter, r *http.Request) {
	projectID := chiRoute.URLParam(r, "project_id")
	if _, err := h.db.GetProject(projectID); err != nil {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Project with ID %s not found", projectID))
		return
	}

	files, err := readFiles(r, 1)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if len(files) == 0 || len(files[0].data) == 0 {
		utils.WriteBadRequestResponse(w, "No file uploaded")
		return
	}
	file := files[0]

	if err := h.bucket.Upload(r.Context(), file.name, file.data, file.mimeType); err != nil {
		utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Failed to upload file: %v", err))
		return
	}

	media := &models.Media{
		ID:        uuid.New().String(),
		Name:      file.name,
		Data:      file.data,
		MimeType:  file.mimeType,
		ProjectID: projectID,
	}
	if err := h.db.UpsertMediaByID(media); err != nil {
		utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Failed to save file: %v", err))
		return
	}

	utils.WriteSuccessResponse(w, models.UploadedMedia{
		ID:       media.ID,
		Name:     media.Name,
		MimeType: media.MimeType,
		URL:      h.bucket.PublicURL(media.Name),
	})
}

// POST /upload-multiple/{project_id}
// Authenticated batch upload. Rows are keyed by filename here, not by id,
// and only the last file's metadata is returned. Files already saved are
// not rolled back when a later one fails.
func (h *MediaHandler) SaveMultiple(w http.ResponseWriter, r *http.Request) {
	projectID := chiRoute.URLParam(r, "project_id")
	if _, err := h.db.GetProject(projectID); err != nil {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Project with ID %s not found", projectID))
		return
	}

	files, err := readFiles(r, 0)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if len(files) == 0 {
		utils.WriteBadRequestResponse(w, "No files uploaded")
		return
	}

	var last models.UploadedMedia
	for _, file := range files {
		if len(file.data) == 0 {
			utils.WriteBadRequestResponse(w, fmt.Sprintf("File %s is empty", file.name))
			return
		}

		if err := h.bucket.Upload(r.Context(), file.name, file.data, file.mimeType); err != nil {
			utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Failed to upload file %s: %v", file.name, err))
			return
		}

		media := &models.Media{
			ID:        uuid.New().String(),
			Name:      file.name,
			Data:      file.data,
			MimeType:  file.mimeType,
			ProjectID: projectID,
		}
		if err := h.db.UpsertMediaByName(media); err != nil {
			utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Failed to save file %s: %v", file.name, err))
			return
		}

		last = models.UploadedMedia{
			ID:       media.ID,
			Name:     media.Name,
			MimeType: media.MimeType,
			URL:      h.bucket.PublicURL(media.Name),
		}
	}

	utils.WriteSuccessResponse(w, last)
}

// GET /files/{id}
// Streams the stored bytes back verbatim with the stored mime type.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chiRoute.URLParam(r, "id")

	media, err := h.db.GetMediaByID(id)
	if err != nil {
		utils.WriteNotFoundResponse(w, "File not found")
		return
	}

	w.Header().Set("Content-Type", media.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(media.Data)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	w.Write(media.Data)
}

// GET /db-files
func (h *MediaHandler) ListDBFiles(w http.ResponseWriter, r *http.Request) {
	names, err := h.db.ListMediaNames()
	if err != nil {
		h.writeListError(w, err)
		return
	}

	files := make([]models.FileInfo, 0, len(names))
	for _, name := range names {
		files = append(files, models.FileInfo{
			Name: name,
			// URL is keyed by name even though retrieval is by id,
			// kept as-is for existing clients.
			URL: strings.TrimSuffix(h.config.BaseURL, "/") + "/files/" + name,
		})
	}

	utils.WriteSuccessResponse(w, files)
}

// GET /bucket-files
func (h *MediaHandler) ListBucketFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.bucket.List(r.Context())
	if err != nil {
		h.writeListError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, files)
}

// writeListError degrades to 503 for connectivity failures, 500 otherwise.
func (h *MediaHandler) writeListError(w http.ResponseWriter, err error) {
	if isUnreachable(err) {
		utils.WriteUnavailableResponse(w, "Database temporarily unavailable")
		return
	}
	utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("Failed to list files: %v", err))
}

func isUnreachable(err error) bool {
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"database connection failed",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// GET /demo
// Minimal upload form for manual testing.
func (h *MediaHandler) DemoPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Upload Demo</title></head>
<body>
  <h1>Single upload</h1>
  <form action="/upload/demo-project" method="post" enctype="multipart/form-data">
    <input type="file" name="file" />
    <button type="submit">Upload</button>
  </form>
  <h1>Multi upload</h1>
  <form action="/upload-multiple/demo-project" method="post" enctype="multipart/form-data">
    <input type="file" name="files" multiple />
    <button type="submit">Upload</button>
  </form>
</body>
</html>`)
}
