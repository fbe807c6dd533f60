package adapthttp

import (
	"net/http"

	"prism/internal/domain"
)

func (s *Server) handleConditionCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.ConditionInput
	if err := parseJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.conditions.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleConditionList(typ domain.ConditionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := typ
		if filter == "" {
			filter = domain.ConditionType(r.URL.Query().Get("condition_type"))
		}
		list, err := s.conditions.List(r.Context(), currentUser(r).ID, filter)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleConditionGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.conditions.Get(r.Context(), currentUser(r).ID, pathID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConditionUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConditionPatch
	if err := parseJSON(w, r, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.conditions.Update(r.Context(), currentUser(r).ID, pathID(r), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConditionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.conditions.Delete(r.Context(), currentUser(r).ID, pathID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
