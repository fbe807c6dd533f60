package adapthttp

import (
	"net/http"
	"time"

	"prism/internal/domain"
)

func (s *Server) handleMealCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.MealInput
	if err := parseJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	meal, created, err := s.meals.Create(r.Context(), currentUser(r).ID, in)
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

func (s *Server) handleMealList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.meals.List(r.Context(), currentUser(r).ID, domain.MealFilter{
		Date:      q.Get("date"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Page:      intQuery(r, "page", 1),
		PageSize:  intQuery(r, "page_size", 0),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleMealToday(w http.ResponseWriter, r *http.Request) {
	meals, err := s.meals.Today(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleMealSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.meals.Summary(r.Context(), currentUser(r).ID, r.URL.Query().Get("target_date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMealSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Meals      []domain.MealInput `json:"meals"`
		LastSyncAt *time.Time         `json:"last_sync_at"`
	}
	if err := parseJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.meals.Sync(r.Context(), currentUser(r).ID, req.Meals, req.LastSyncAt)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMealGet(w http.ResponseWriter, r *http.Request) {
	meal, err := s.meals.Get(r.Context(), currentUser(r).ID, pathID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleMealUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.MealPatch
	if err := parseJSON(w, r, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	meal, err := s.meals.Update(r.Context(), currentUser(r).ID, pathID(r), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleMealDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.meals.Delete(r.Context(), currentUser(r).ID, pathID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
