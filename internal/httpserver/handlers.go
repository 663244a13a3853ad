package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"conduit-registry/internal/registry"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.svc.ListListings(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeItems(w, listings)
}

func (s *Server) handleRegisterListing(w http.ResponseWriter, r *http.Request) {
	overwrite, err := boolParam(r, "overwrite")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var l registry.Listing
	if err := decodeJSON(w, r, s.maxBody, &l); err != nil {
		writeError(w, s.logger, err)
		return
	}

	stored, err := s.svc.RegisterListing(r.Context(), l, registry.RegisterOptions{Overwrite: overwrite})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.svc.GetListing(r.Context(), chi.URLParam(r, "content_hash"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := registry.SearchOptions{ContentType: q.Get("type")}

	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, s.logger, fmt.Errorf("%w: max_price must be a non-negative integer", registry.ErrInvalidInput))
			return
		}
		opts.MaxPrice = price
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	opts.Limit = limit

	results, err := s.svc.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeItems(w, results)
}

func (s *Server) handleClearListings(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.ClearListings(r.Context(), grantFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedBody{Deleted: n})
}

func (s *Server) handleListSeeders(w http.ResponseWriter, r *http.Request) {
	seeders, err := s.svc.ListSeeders(r.Context(), r.URL.Query().Get("content_hash"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeItems(w, seeders)
}

func (s *Server) handleAnnounceSeeder(w http.ResponseWriter, r *http.Request) {
	var a registry.SeederAnnouncement
	if err := decodeJSON(w, r, s.maxBody, &a); err != nil {
		writeError(w, s.logger, err)
		return
	}

	stored, err := s.svc.AnnounceSeeder(r.Context(), a)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleClearSeeders(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.ClearSeeders(r.Context(), grantFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedBody{Deleted: n})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Discover(r.Context(), chi.URLParam(r, "content_hash"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListManufacturers(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.ListManufacturers(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeItems(w, ms)
}

func (s *Server) handleGetManufacturer(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.GetManufacturer(r.Context(), chi.URLParam(r, "pk_hex"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRegisterManufacturer(w http.ResponseWriter, r *http.Request) {
	var m registry.Manufacturer
	if err := decodeJSON(w, r, s.maxBody, &m); err != nil {
		writeError(w, s.logger, err)
		return
	}

	stored, err := s.svc.RegisterManufacturer(r.Context(), grantFrom(r.Context()), m)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleDeleteManufacturer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteManufacturer(r.Context(), grantFrom(r.Context()), chi.URLParam(r, "pk_hex")); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearManufacturers(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.ClearManufacturers(r.Context(), grantFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedBody{Deleted: n})
}

func (s *Server) handleAdminHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	ops, err := s.svc.AdminHistory(r.Context(), grantFrom(r.Context()), limit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeItems(w, ops)
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", registry.ErrInvalidInput, name)
	}
	return b, nil
}

// intParam returns 0 for an absent parameter.
func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", registry.ErrInvalidInput, name)
	}
	return n, nil
}
