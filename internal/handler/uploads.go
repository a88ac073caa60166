package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/comanda-app/api/internal/blob"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// maxUploadSize caps a single image upload.
const maxUploadSize = 5 << 20

// BlobSaver stores an uploaded file and returns its public URL.
// Satisfied by *blob.LocalStore.
type BlobSaver interface {
	Save(ctx context.Context, companyID uuid.UUID, filename string, r io.Reader) (string, error)
}

// CompanyStore updates company branding.
// Satisfied by *database.Queries.
type CompanyStore interface {
	UpdateCompanyLogo(ctx context.Context, arg database.UpdateCompanyLogoParams) (database.Company, error)
}

// UploadHandler accepts image uploads for products and the company logo.
type UploadHandler struct {
	blobs  BlobSaver
	store  CompanyStore
	logger *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(blobs BlobSaver, store CompanyStore, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{blobs: blobs, store: store, logger: logger}
}

// RegisterRoutes registers upload endpoints.
// Expected to be mounted inside: /companies/{cid}/uploads
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.RoleAdmin))
	r.Post("/", h.Upload)
	r.Post("/logo", h.UploadLogo)
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores the multipart "file" field and returns its URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	companyID, url, ok := h.save(w, r)
	if !ok {
		return
	}
	h.logger.Info("file uploaded", zap.String("company_id", companyID.String()), zap.String("url", url))
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

// UploadLogo stores the file and makes it the company logo.
func (h *UploadHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	companyID, url, ok := h.save(w, r)
	if !ok {
		return
	}

	_, err := h.store.UpdateCompanyLogo(r.Context(), database.UpdateCompanyLogoParams{
		ID:      companyID,
		LogoUrl: pgtype.Text{String: url, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}
		writeInternalError(w, h.logger, "update company logo", err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

func (h *UploadHandler) save(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company ID")
		return uuid.Nil, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return uuid.Nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return uuid.Nil, "", false
	}
	defer file.Close()

	url, err := h.blobs.Save(r.Context(), companyID, header.Filename, file)
	if err != nil {
		if errors.Is(err, blob.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "unsupported file type")
			return uuid.Nil, "", false
		}
		writeInternalError(w, h.logger, "save upload", err)
		return uuid.Nil, "", false
	}
	return companyID, url, true
}
