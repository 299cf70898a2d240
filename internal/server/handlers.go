package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/ahorro/internal/query"
	"github.com/zombor/ahorro/internal/receipt"
	"github.com/zombor/ahorro/internal/scanning"
)

// maxUploadSize bounds multipart uploads; phone photos can be large
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

type categoryResponse struct {
	ID    receipt.Category `json:"id"`
	Title string           `json:"title"`
}

// handleListCategories returns the category enumeration with display titles
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	out := make([]categoryResponse, 0, len(receipt.Categories()))
	for _, c := range receipt.Categories() {
		out = append(out, categoryResponse{ID: c, Title: c.Title()})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListReceipts returns receipts, optionally limited to one category and
// a search term. With group=category the result is grouped for display.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	receipts := s.deps.Records.List()
	if c := params.Get("category"); c != "" {
		category := receipt.Category(strings.ToLower(c))
		if !category.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown category")
			return
		}
		receipts = s.deps.Records.ByCategory(category)
	}

	search := params.Get("search")
	switch params.Get("group") {
	case "":
	case "category":
		writeJSON(w, http.StatusOK, receipt.Group(receipts, search))
		return
	default:
		writeError(w, http.StatusBadRequest, "Unknown grouping")
		return
	}

	matching := make([]receipt.Receipt, 0, len(receipts))
	for _, rec := range receipts {
		if rec.MatchesSearch(search) {
			matching = append(matching, rec)
		}
	}
	writeJSON(w, http.StatusOK, matching)
}

// contentTypeFor falls back to the file extension when the part has no
// specific type
func contentTypeFor(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleUploadReceipt stores, scans and records an uploaded document
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file")
		return
	}

	var captureDate time.Time
	if v := r.FormValue("capture_date"); v != "" {
		captureDate, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "capture_date must be RFC 3339")
			return
		}
	}

	results := s.deps.Ingester.Submit(receipt.Submission{
		Data:                data,
		Filename:            header.Filename,
		MimeType:            contentTypeFor(header.Header.Get("Content-Type"), header.Filename),
		Description:         r.FormValue("description"),
		CaptureDate:         captureDate,
		LocationDescription: r.FormValue("location"),
	})

	var res receipt.Result
	select {
	case res = <-results:
	case <-r.Context().Done():
		slog.Warn("Client went away before ingestion finished", "filename", header.Filename)
		return
	}

	if res.Err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", res.Err)
		writeError(w, statusForIngestError(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res.Receipt)
}

// statusForIngestError maps ingestion failures to HTTP status codes
func statusForIngestError(err error) int {
	switch {
	case errors.Is(err, scanning.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scanning.ErrGatewayUnavailable),
		errors.Is(err, scanning.ErrGatewayBadResponse),
		errors.Is(err, scanning.ErrGatewayDecode),
		errors.Is(err, scanning.ErrUnauthenticated):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.deps.Records.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateReceipt replaces the editable fields of a receipt
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var rec receipt.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if rec.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	rec.ID = id
	rec.Category = receipt.ParseCategory(string(rec.Category))
	rec.UpdatedAt = time.Now()

	if !s.deps.Records.Update(rec) {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	updated, _ := s.deps.Records.Get(id)
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteReceipt deletes a receipt and its files
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Records.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the stored source document
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.deps.Records.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	s.serveBlob(w, rec.Attachment.Path, rec.Attachment.MimeType)
}

// handleGetReceiptThumbnail returns the generated thumbnail
func (s *Server) handleGetReceiptThumbnail(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.deps.Records.Get(r.PathValue("id"))
	if !ok || rec.Attachment.ThumbnailPath == "" {
		writeError(w, http.StatusNotFound, "Thumbnail not found")
		return
	}
	s.serveBlob(w, rec.Attachment.ThumbnailPath, "image/jpeg")
}

func (s *Server) serveBlob(w http.ResponseWriter, path, contentType string) {
	data, err := s.deps.Files.Get(path)
	if err != nil {
		slog.Error("Error reading attachment", "path", path, "error", err)
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleQuery resolves a free-text question
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	writeQueryResult(w, s.deps.Queries.Resolve(strings.TrimSpace(req.Prompt)))
}

// handleLastQuery returns the latest query result, refreshed against the
// current collection, or 204 when nothing was asked yet
func (s *Server) handleLastQuery(w http.ResponseWriter, r *http.Request) {
	res, ok := s.deps.Queries.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeQueryResult(w, res)
}

func writeQueryResult(w http.ResponseWriter, res query.Result) {
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    res.Query,
		"receipts": res.Receipts,
		"answer":   res.Answer,
		"text":     res.Answer.Text(),
	})
}

// handleSummary returns the current month's summary, or 204 when there is none
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.deps.Analytics.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleDailySpending returns the current month's spend per day
func (s *Server) handleDailySpending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Analytics.RecentSpending())
}
