package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/rickmorty-gateway/pkg/gateway"
)

const (
	maxSeason = 10

	msgInvalidPage   = "Invalid page number"
	msgNameRequired  = "Name parameter is required"
	msgInvalidSeason = "Invalid season number (1-10)"
	msgFilterMissing = "At least one filter parameter is required (status, species, or gender)"
)

// parsePage reads the page query parameter. Absent means page 1.
func parsePage(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// parseID reads a positive integer path value.
func parseID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func characterFilter(r *http.Request) gateway.CharacterFilter {
	q := r.URL.Query()
	return gateway.CharacterFilter{
		Name:    q.Get("name"),
		Status:  q.Get("status"),
		Species: q.Get("species"),
		Gender:  q.Get("gender"),
	}
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidPage)
		return
	}
	payload, err := s.resolver.ListCharacters(r.Context(), page, characterFilter(r))
	s.respond(w, r, payload, err, "No characters found")
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid character ID")
		return
	}
	payload, err := s.resolver.GetCharacter(r.Context(), id)
	s.respond(w, r, payload, err, gateway.Character.Title()+" not found")
}

func (s *Server) handleSearchCharacters(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	payload, err := s.resolver.SearchCharacters(r.Context(), name)
	s.respond(w, r, payload, err, "No characters found with that name")
}

func (s *Server) handleFilterCharacters(w http.ResponseWriter, r *http.Request) {
	filter := characterFilter(r)
	filter.Name = ""
	if !filter.HasAttributes() {
		writeError(w, http.StatusBadRequest, msgFilterMissing)
		return
	}
	page, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidPage)
		return
	}
	payload, err := s.resolver.FilterCharacters(r.Context(), filter, page)
	s.respond(w, r, payload, err, "No characters found with those filters")
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidPage)
		return
	}
	payload, err := s.resolver.ListEpisodes(r.Context(), page)
	s.respond(w, r, payload, err, "No episodes found")
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid episode ID")
		return
	}
	payload, err := s.resolver.GetEpisode(r.Context(), id)
	s.respond(w, r, payload, err, gateway.Episode.Title()+" not found")
}

func (s *Server) handleEpisodesBySeason(w http.ResponseWriter, r *http.Request) {
	season, ok := parseID(r, "season")
	if !ok || season > maxSeason {
		writeError(w, http.StatusBadRequest, msgInvalidSeason)
		return
	}

	const notFound = "No episodes found for that season"
	payload, err := s.resolver.EpisodesBySeason(r.Context(), season)
	if err == nil && !hasResults(payload) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.respond(w, r, payload, err, notFound)
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidPage)
		return
	}
	payload, err := s.resolver.ListLocations(r.Context(), page)
	s.respond(w, r, payload, err, "No locations found")
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid location ID")
		return
	}
	payload, err := s.resolver.GetLocation(r.Context(), id)
	s.respond(w, r, payload, err, gateway.Location.Title()+" not found")
}

func (s *Server) handleSearchLocations(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	payload, err := s.resolver.SearchLocations(r.Context(), name)
	s.respond(w, r, payload, err, "No locations found with that name")
}

// hasResults reports whether a collection document has a non-empty results array.
func hasResults(payload json.RawMessage) bool {
	var doc struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	return len(doc.Results) > 0
}
