package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"accounting/internal/core"
	"accounting/internal/ledger"
	"accounting/internal/log"
)

const kindDocument = "document"

// uploadDocument stores the multipart "file" field under the company.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed upload: %v", core.ErrInvalidValue, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file field: %v", core.ErrInvalidValue, err))
		return
	}
	defer file.Close()

	doc, err := s.documents.CreateDocument(r.Context(), companyID, ledger.Upload{Name: header.Filename, Content: file})
	s.observe(log.OpCreate, kindDocument, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Document uploaded",
		log.FieldDocumentID, doc.ID,
		log.FieldCompanyID, companyID,
		log.FieldFilePath, doc.Path)
	created(w, "document uploaded", doc)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs, err := s.documents.ListDocuments(r.Context(), companyID)
	s.observe(log.OpList, kindDocument, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "documents", docs)
}

// downloadDocument streams the stored bytes as an attachment.
func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, rc, err := s.documents.OpenDocument(r.Context(), id)
	s.observe(log.OpRead, kindDocument, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(doc.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("X-Document-ID", strconv.FormatInt(doc.ID, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Document download interrupted",
			log.FieldDocumentID, id, log.FieldError, err)
	}
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.documents.DeleteDocument(r.Context(), id)
	s.observe(log.OpDelete, kindDocument, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "document deleted", nil)
}

// deleteDocumentByPath accepts the "<company>/<document>_<name>" path a
// client got back from an upload or listing.
func (s *Server) deleteDocumentByPath(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	err := s.documents.DeleteDocumentByPath(r.Context(), path)
	s.observe(log.OpDelete, kindDocument, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "document deleted", nil)
}
