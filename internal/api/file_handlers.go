package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sejf-plikow/internal/access"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/service"
)

const (
	encryptionPasswordHeader = "X-Encryption-Password"
	maxUploadBytes           = 64 << 20
)

// FileResponse is the listing/detail view: record metadata plus a display
// prefix of the digest, never any crypto material.
type FileResponse struct {
	*models.File
	DigestPreview string `json:"digest_preview"`
}

func toFileResponse(f *models.File) FileResponse {
	return FileResponse{File: f, DigestPreview: f.DigestPreview()}
}

// @Summary      Upload an encrypted file
// @Description  Encrypts the uploaded content with a fresh per-file key and wraps that key under a key derived from the X-Encryption-Password header. The password is never stored.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Param        file          formData  file    true   "File content"
// @Param        access_level  formData  string  true   "vault or public"
// @Param        description   formData  string  false  "Optional description"
// @Param        X-Encryption-Password  header  string  true  "Encryption password"
// @Success      201  {object}  FileResponse
// @Failure      400  {string}  string "Missing file or password"
// @Router       /files [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	password := r.Header.Get(encryptionPasswordHeader)
	if password == "" {
		respondError(w, http.StatusBadRequest, "encryption password header is required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	formFile, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer formFile.Close()

	data, err := io.ReadAll(io.LimitReader(formFile, maxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	accessLevel := models.AccessLevel(r.FormValue("access_level"))
	exchangeReady, _ := strconv.ParseBool(r.FormValue("exchange_ready"))

	file, err := s.files.Upload(r.Context(), claims, service.UploadParams{
		Name:          header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		Data:          data,
		AccessLevel:   accessLevel,
		Description:   r.FormValue("description"),
		Password:      password,
		ExchangeReady: exchangeReady,
	}, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAccessTier), errors.Is(err, service.ErrPasswordRequired):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("upload failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, toFileResponse(file))
}

// @Summary      List visible files
// @Description  Admin sees all files, premium sees own plus public, guest sees public only.
// @Tags         files
// @Produce      json
// @Param        page       query  int  false  "Page number (1-based)"
// @Param        page_size  query  int  false  "Page size, max 100"
// @Success      200  {array}  FileResponse
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	files, err := s.files.List(r.Context(), claims, pageSize, (page-1)*pageSize)
	if err != nil {
		s.logger.Error("listing failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	responses := make([]FileResponse, 0, len(files))
	for i := range files {
		responses = append(responses, toFileResponse(&files[i]))
	}
	respondJSON(w, http.StatusOK, responses)
}

// @Summary      Download and decrypt a file
// @Description  Unwraps the file key with the password from the X-Encryption-Password header, decrypts, and re-verifies the content digest. A wrong password is retryable; an integrity failure is not.
// @Tags         files
// @Produce      octet-stream
// @Param        fileID  path    string  true  "File ID"  format(uuid)
// @Param        X-Encryption-Password  header  string  true  "Decryption password"
// @Success      200  {file}    binary
// @Failure      401  {string}  string "Invalid decryption password"
// @Failure      409  {string}  string "File integrity check failed"
// @Router       /files/{fileID}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file ID")
		return
	}

	password := r.Header.Get(encryptionPasswordHeader)
	result, err := s.files.Download(r.Context(), claims, fileID, password, requestMeta(r))
	if err != nil {
		s.respondFileError(w, err, "download failed")
		return
	}

	w.Header().Set("Content-Type", result.File.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.File.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Plaintext)))
	w.Header().Set("X-Integrity-Status", result.Integrity)
	w.Header().Set("X-Encryption-Algorithm", result.Algorithm)
	w.Write(result.Plaintext)
}

type ExchangeRequest struct {
	PublicKey string `json:"public_key"`
}

type ExchangeResponse struct {
	File    FileResponse `json:"file"`
	Payload struct {
		Data       []byte `json:"data"`
		IV         []byte `json:"iv"`
		AuthTag    []byte `json:"auth_tag"`
		WrappedKey []byte `json:"wrapped_key"`
	} `json:"payload"`
	Envelope struct {
		IV         []byte `json:"iv"`
		AuthTag    []byte `json:"auth_tag"`
		WrappedKey []byte `json:"wrapped_key"`
		KeyIV      []byte `json:"key_iv"`
		KeyAuthTag []byte `json:"key_auth_tag"`
	} `json:"envelope"`
}

// @Summary      Download for key exchange
// @Description  Returns the stored ciphertext re-encrypted in transit under a fresh key wrapped for the caller's RSA public key, plus the original envelope metadata. The server never touches plaintext on this path.
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        fileID           path  string           true  "File ID"  format(uuid)
// @Param        exchangeRequest  body  ExchangeRequest  true  "Requester public key (PEM)"
// @Success      200  {object}  ExchangeResponse
// @Failure      400  {string}  string "Invalid public key"
// @Failure      403  {string}  string "Exchange not enabled for this file"
// @Router       /files/{fileID}/exchange [post]
func (s *Server) ExchangeDownloadHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file ID")
		return
	}

	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.files.DownloadForExchange(r.Context(), claims, fileID, req.PublicKey, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPublicKey):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrExchangeDisabled):
			respondError(w, http.StatusForbidden, err.Error())
		default:
			s.respondFileError(w, err, "exchange failed")
		}
		return
	}

	resp := ExchangeResponse{File: toFileResponse(result.File)}
	resp.Payload.Data = result.Payload.Data
	resp.Payload.IV = result.Payload.IV
	resp.Payload.AuthTag = result.Payload.AuthTag
	resp.Payload.WrappedKey = result.Payload.WrappedKey
	resp.Envelope.IV = result.FileIV
	resp.Envelope.AuthTag = result.FileTag
	resp.Envelope.WrappedKey = result.WrappedKey
	resp.Envelope.KeyIV = result.KeyIV
	resp.Envelope.KeyAuthTag = result.KeyTag
	respondJSON(w, http.StatusOK, resp)
}

type ShareRequest struct {
	ExpiresInHours int `json:"expires_in_hours" example:"24"`
}

type ShareResponse struct {
	Token   string    `json:"token"`
	URL     string    `json:"url"`
	Expires time.Time `json:"expires"`
}

// @Summary      Create a share link
// @Description  Generates an expiring share token for a file. Only the owner or an admin can share; the encryption password still travels out of band.
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        fileID        path  string        true  "File ID"  format(uuid)
// @Param        shareRequest  body  ShareRequest  true  "Expiry in hours"
// @Success      201  {object}  ShareResponse
// @Router       /files/{fileID}/share [post]
func (s *Server) ShareFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file ID")
		return
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExpiresInHours < 1 {
		req.ExpiresInHours = 24
	}

	share, err := s.files.Share(r.Context(), claims, fileID, time.Duration(req.ExpiresInHours)*time.Hour, requestMeta(r))
	if err != nil {
		s.respondFileError(w, err, "share failed")
		return
	}

	respondJSON(w, http.StatusCreated, ShareResponse{
		Token:   share.Token,
		URL:     share.URL,
		Expires: share.Expires,
	})
}

// @Summary      Revoke a share link
// @Tags         files
// @Param        fileID  path  string  true  "File ID"  format(uuid)
// @Success      200  {string}  string "Share revoked"
// @Router       /files/{fileID}/share [delete]
func (s *Server) UnshareFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file ID")
		return
	}

	if err := s.files.Unshare(r.Context(), claims, fileID, requestMeta(r)); err != nil {
		s.respondFileError(w, err, "unshare failed")
		return
	}
	respondMessage(w, http.StatusOK, "share revoked")
}

// @Summary      Delete a file
// @Description  Soft-deletes the metadata record, then unlinks the blob best-effort.
// @Tags         files
// @Param        fileID  path  string  true  "File ID"  format(uuid)
// @Success      200  {string}  string "File deleted"
// @Router       /files/{fileID} [delete]
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid file ID")
		return
	}

	if err := s.files.Delete(r.Context(), claims, fileID, requestMeta(r)); err != nil {
		s.respondFileError(w, err, "delete failed")
		return
	}
	respondMessage(w, http.StatusOK, "file deleted")
}

// @Summary      Resolve a share token
// @Description  Maps a non-expired share token to file metadata. Downloading still requires authentication and the encryption password.
// @Tags         files
// @Produce      json
// @Param        token  path  string  true  "Share token"
// @Success      200  {object}  FileResponse
// @Failure      404  {string}  string "Unknown or expired token"
// @Router       /shared/{token} [get]
func (s *Server) ResolveShareHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	file, err := s.files.ResolveShare(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			respondError(w, http.StatusNotFound, "unknown or expired share token")
			return
		}
		s.logger.Error("share resolution failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "share resolution failed")
		return
	}

	respondJSON(w, http.StatusOK, toFileResponse(file))
}

// respondFileError maps pipeline sentinels to status codes. The wrong
// password and integrity cases get distinct, deliberate responses.
func (s *Server) respondFileError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrFileNotFound):
		respondError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, access.ErrNotPermitted):
		respondError(w, http.StatusForbidden, "not permitted")
	case errors.Is(err, service.ErrPasswordRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWrongPassword):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrIntegrity):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMissingSalt):
		respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(fallback, zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
