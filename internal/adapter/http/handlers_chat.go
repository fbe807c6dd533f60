package adapthttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"prism/internal/app"
	"prism/internal/domain"
)

func (s *Server) handleChatSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := parseJSON(w, r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	sess, err := s.chat.CreateSession(r.Context(), currentUser(r).ID, req.Title)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleChatSessionList(w http.ResponseWriter, r *http.Request) {
	page, err := s.chat.ListSessions(r.Context(), currentUser(r).ID, intQuery(r, "page", 1), intQuery(r, "page_size", 0))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleChatSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chat.GetSession(r.Context(), currentUser(r).ID, pathID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleChatSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.DeleteSession(r.Context(), currentUser(r).ID, pathID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content     string          `json:"content"`
		Attachments json.RawMessage `json:"attachments"`
	}
	if err := parseJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reply, err := s.chat.SendMessage(r.Context(), currentUser(r), pathID(r), req.Content, req.Attachments)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleRecognizeFood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageBase64 string `json:"image_base64"`
		ImageType   string `json:"image_type"`
	}
	if err := s.parseUploadJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.chat.RecognizeBase64(r.Context(), currentUser(r), req.ImageBase64, req.ImageType)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecognizeUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.MaxUploadBytes + 64<<10
	if r.ContentLength > limit {
		s.writeServiceError(w, r, errTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeServiceError(w, r, errTooLarge)
			return
		}
		s.writeServiceError(w, r, &domain.ValidationError{Field: "file", Reason: "multipart form with a file is required"})
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeServiceError(w, r, &domain.ValidationError{Field: "file", Reason: "is required"})
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		s.writeServiceError(w, r, &domain.ValidationError{Field: "file", Reason: "must be an image"})
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		s.writeServiceError(w, r, errTooLarge)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		s.writeServiceError(w, r, errTooLarge)
		return
	}

	res, err := s.chat.RecognizeUpload(r.Context(), currentUser(r), data, contentType, header.Filename)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuickLog(w http.ResponseWriter, r *http.Request) {
	var req app.QuickLogRequest
	if err := parseJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	meal, created, err := s.chat.QuickLog(r.Context(), currentUser(r).ID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, meal)
}

// parseUploadJSON decodes a JSON body carrying an inline image. The cap
// allows for base64 expansion of the upload limit.
func (s *Server) parseUploadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes*4/3+64<<10)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errTooLarge
		}
		return &domain.ValidationError{Field: "body", Reason: "invalid json"}
	}
	return nil
}
