package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/insurepal/internal/apperr"
	"github.com/hyperjump/insurepal/internal/rag"
	"github.com/hyperjump/insurepal/internal/storage"
	"go.uber.org/zap"
)

const (
	multipartMemory  = 32 << 20
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type errorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

type uploadResponse struct {
	Message    string `json:"message"`
	Namespace  string `json:"namespace"`
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	if s.cfg.Server.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Server.MaxUploadMB)<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, apperr.KindInvalidInput,
				fmt.Sprintf("Upload exceeds %d MB.", s.cfg.Server.MaxUploadMB))
			return
		}
		s.respondError(w, http.StatusUnprocessableEntity, apperr.KindInvalidInput, "Field 'file' is required.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, apperr.KindInvalidInput, "Field 'file' is required.")
		return
	}
	defer file.Close()

	fileName := header.Filename
	content, err := io.ReadAll(file)
	if err != nil {
		s.uploadFailed(w, log, fileName, err)
		return
	}
	namespace := s.resolveNamespace(r)
	log = log.With(zap.String("file_name", fileName), zap.String("namespace", namespace))
	log.Info("upload received", zap.Int("size", len(content)))

	docs, err := s.extractor.Extract(r.Context(), fileName, content)
	if err != nil {
		if apperr.IsUnsupportedFormat(err) {
			log.Info("upload rejected", zap.String("reason", err.Error()))
			s.respondError(w, http.StatusBadRequest, apperr.KindUnsupportedFormat, err.Error())
			return
		}
		s.uploadFailed(w, log, fileName, err)
		return
	}
	log.Debug("upload extracted", zap.Int("segments", len(docs)))

	rec, err := s.indexer.Ingest(r.Context(), namespace, fileName, int64(len(content)), docs)
	if err != nil {
		s.uploadFailed(w, log, fileName, err)
		return
	}
	log.Debug("upload inserted", zap.String("document_id", rec.ID), zap.Int("chunks", rec.Chunks))

	s.setSessionCookie(w, namespace)
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message:    fmt.Sprintf("File '%s' uploaded and indexed successfully", fileName),
		Namespace:  namespace,
		DocumentID: rec.ID,
		Chunks:     rec.Chunks,
	})
	log.Info("upload indexed", zap.String("document_id", rec.ID))
}

func (s *Server) uploadFailed(w http.ResponseWriter, log *zap.Logger, fileName string, err error) {
	kind := apperr.KindOf(err)
	log.Error("upload failed", zap.Stringer("kind", kind), zap.Error(err), zap.Stack("stack"))
	s.respondError(w, kind.HTTPStatus(), kind, fmt.Sprintf("Failed to process file '%s': %v", fileName, err))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	if err := parseForm(r); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, apperr.KindInvalidInput, "Field 'question' is required.")
		return
	}
	questions, ok := r.PostForm["question"]
	if !ok || len(questions) == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, apperr.KindInvalidInput, "Field 'question' is required.")
		return
	}
	question := questions[0]
	namespace := s.resolveNamespace(r)
	log.Debug("query request", zap.String("namespace", namespace), zap.String("question", question))

	opts := []rag.Option{rag.WithLogger(log)}
	if s.keywordIndex != nil {
		opts = append(opts, rag.WithHybrid(s.keywordIndex, s.ledger))
	}
	engine := rag.NewQueryEngine(s.store, s.embedder, s.generator, namespace, s.cfg.Retrieval, opts...)
	result, err := engine.Query(r.Context(), question)
	if err != nil {
		kind := apperr.KindOf(err)
		log.Error("query failed", zap.Stringer("kind", kind), zap.Error(err), zap.Stack("stack"))
		s.respondError(w, kind.HTTPStatus(), kind, fmt.Sprintf("Failed to process query: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, queryResponse{Answer: result.Answer})
}

// parseForm parses either a multipart or a URL-encoded body.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"vector_store_type": s.store.Type(),
		"hybrid":            s.keywordIndex != nil,
		"isolation":         s.cfg.VectorStore.Isolation,
	}
	if s.ledger != nil {
		uploads, err := s.ledger.CountUploads(ctx)
		if err != nil {
			s.logger.Error("status: count uploads failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, apperr.KindInternal, err.Error())
			return
		}
		chunks, err := s.ledger.CountChunks(ctx)
		if err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, apperr.KindInternal, err.Error())
			return
		}
		resp["uploads"] = uploads
		resp["chunks"] = chunks
	}
	if stats, err := s.store.Stats(ctx); err != nil {
		// A remote index that is unreachable should not hide the local status.
		s.logger.Warn("status: vector store stats failed", zap.Error(err))
		resp["vector_store_error"] = err.Error()
	} else {
		resp["vector_store"] = stats
	}
	if s.keywordIndex != nil {
		if n, err := s.keywordIndex.DocCount(); err == nil {
			resp["keyword_chunks"] = n
		}
	}
	if usage, err := storage.MeasureDiskUsage(map[string]string{
		"database": s.cfg.Storage.DatabasePath,
		"keyword":  s.cfg.Storage.BleveIndexPath,
		"vectors":  s.cfg.Storage.VectorSnapshotPath,
	}); err == nil {
		resp["disk_usage"] = usage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotImplemented, apperr.KindInternal, "ledger not enabled")
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	namespace := ""
	if !s.cfg.VectorStore.SharedNamespace() {
		namespace = requestNamespace(r)
	}
	if namespace == "" && !s.cfg.VectorStore.SharedNamespace() {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": []struct{}{}, "offset": offset, "limit": limit})
		return
	}
	docs, err := s.ledger.ListUploads(r.Context(), namespace, offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, apperr.KindInternal, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusNotImplemented, apperr.KindInternal, "ledger not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	doc, err := s.ledger.GetUpload(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, apperr.KindInvalidInput, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, apperr.KindInternal, err.Error())
		return
	}
	// Session namespaces only see their own uploads.
	if !s.cfg.VectorStore.SharedNamespace() && doc.Namespace != requestNamespace(r) {
		s.respondError(w, http.StatusNotFound, apperr.KindInvalidInput, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind apperr.Kind, detail string) {
	s.respondJSON(w, status, errorResponse{Detail: detail, Kind: kind.String()})
}
