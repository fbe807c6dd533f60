package adapthttp

import (
	"net/http"

	"prism/internal/domain"
)

func (s *Server) handleMessageList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.messages.List(r.Context(), currentUser(r).ID,
		q.Get("unread_only") == "true",
		domain.MessageType(q.Get("message_type")),
		intQuery(r, "limit", 0),
	)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.messages.UnreadCount(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.messages.MarkAllRead(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated_count": n})
}

func (s *Server) handleMessageGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.messages.Get(r.Context(), currentUser(r).ID, pathID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMessageRead(w http.ResponseWriter, r *http.Request) {
	m, err := s.messages.MarkRead(r.Context(), currentUser(r).ID, pathID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMessageDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.messages.Delete(r.Context(), currentUser(r).ID, pathID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	s.stream.ServeWS(w, r, currentUser(r).ID)
}
