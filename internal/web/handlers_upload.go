package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/excel-analytics/internal/core"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

// uploadFormField is the multipart field carrying the workbook.
const uploadFormField = "excel"

// multipartOverhead is allowed on top of the file size for the other form
// parts and the multipart framing.
const multipartOverhead = 1 << 20

// uploadSummary is the response body of a fresh upload. Data holds the
// preview rows only.
type uploadSummary struct {
	ID           string              `json:"id"`
	OriginalName string              `json:"originalName"`
	Columns      []string            `json:"columns"`
	RowCount     int                 `json:"rowCount"`
	Data         []ingest.Record     `json:"data"`
	Metadata     core.UploadMetadata `json:"metadata"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func summarize(u *core.Upload) uploadSummary {
	data := u.Data
	if data == nil {
		data = []ingest.Record{}
	}
	return uploadSummary{
		ID:           u.ID,
		OriginalName: u.OriginalName,
		Columns:      u.Columns,
		RowCount:     u.RowCount,
		Data:         data,
		Metadata:     u.Metadata,
		CreatedAt:    u.CreatedAt,
	}
}

type uploadResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Upload  uploadSummary `json:"upload"`
}

type uploadListResponse struct {
	Success    bool            `json:"success"`
	Uploads    []core.Upload   `json:"uploads"`
	Pagination core.Pagination `json:"pagination"`
}

type selectSheetRequest struct {
	Sheet string `json:"sheet" validate:"required"`
}

// handleUploadExcel ingests a workbook sent as multipart field "excel". An
// optional "sheetName" field selects the sheet to parse.
func (s *Server) handleUploadExcel(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.fail(w, r, uploadFormError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		s.fail(w, r, uploadFormError(err))
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	u, err := s.service.UploadExcel(ctx, currentUser(r).ID, ingest.Upload{
		Reader:       file,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		SheetName:    r.FormValue("sheetName"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Success: true,
		Message: "File uploaded and processed successfully",
		Upload:  summarize(u),
	})
}

// uploadFormError classifies a multipart failure. Oversized bodies keep
// their *http.MaxBytesError; a missing part becomes errNoFile.
func uploadFormError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return err
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return errNoFile
	default:
		return fmt.Errorf("%w: multipart form: %v", core.ErrInvalidRequest, err)
	}
}

func (s *Server) handleUploadHistory(w http.ResponseWriter, r *http.Request) {
	uploads, page, err := s.service.History(r.Context(), currentUser(r).ID, parsePage(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadListResponse{Success: true, Uploads: uploads, Pagination: page})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.GetUpload(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		Upload  *core.Upload `json:"upload"`
	}{true, u})
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteUpload(ctx, currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("Upload deleted successfully"))
}

// handleDownloadUpload streams the stored workbook under its original name.
func (s *Server) handleDownloadUpload(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.DownloadUpload(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := os.Open(u.UploadPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = core.ErrFileMissing
		}
		s.fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", u.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": u.OriginalName}))
	http.ServeContent(w, r, u.OriginalName, u.UpdatedAt, f)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultPreviewRows)
	preview, err := s.service.Preview(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool             `json:"success"`
		Preview core.DataPreview `json:"preview"`
	}{true, preview})
}

// handleSelectSheet re-parses an upload from another sheet of its workbook.
func (s *Server) handleSelectSheet(w http.ResponseWriter, r *http.Request) {
	var req selectSheetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	u, err := s.service.SelectSheet(ctx, currentUser(r).ID, chi.URLParam(r, "id"), req.Sheet)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Message: "Sheet selected successfully",
		Upload:  summarize(u),
	})
}
