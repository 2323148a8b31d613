package gateway

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/rickmorty-gateway/pkg/cache"
)

// Resource is an origin collection.
type Resource string

const (
	Character Resource = "character"
	Episode   Resource = "episode"
	Location  Resource = "location"
)

// Resources lists every collection the gateway serves.
var Resources = []Resource{Character, Episode, Location}

// ParseResource converts a collection name ("character", "episode",
// "location") into a Resource.
func ParseResource(name string) (Resource, error) {
	r := Resource(name)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown resource %q", ErrInvalidRequest, name)
	}
	return r, nil
}

// Valid reports whether r is a known collection.
func (r Resource) Valid() bool {
	switch r {
	case Character, Episode, Location:
		return true
	}
	return false
}

// Title returns the display name used in client-facing messages.
func (r Resource) Title() string {
	switch r {
	case Character:
		return "Character"
	case Episode:
		return "Episode"
	case Location:
		return "Location"
	}
	return string(r)
}

// Operation is the logical operation performed on a Resource.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpSearch Operation = "search"
	OpFilter Operation = "filter"
	OpSeason Operation = "season"
)

func (o Operation) valid() bool {
	switch o {
	case OpList, OpGet, OpSearch, OpFilter, OpSeason:
		return true
	}
	return false
}

// Request is one logical, already validated, gateway call.
type Request struct {
	Resource  Resource
	Operation Operation

	// ID is the entity id for OpGet.
	ID int

	// Params are forwarded to the origin as query parameters.
	// Empty values are dropped.
	Params map[string]string

	// Page is the requested page; 0 means not supplied.
	Page int
}

// Validate checks the request shape.
func (r Request) Validate() error {
	if !r.Resource.Valid() {
		return fmt.Errorf("%w: unknown resource %q", ErrInvalidRequest, r.Resource)
	}
	if !r.Operation.valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, r.Operation)
	}
	if r.Operation == OpGet && r.ID < 1 {
		return fmt.Errorf("%w: id must be a positive integer", ErrInvalidRequest)
	}
	if r.Page < 0 {
		return fmt.Errorf("%w: page must be a positive integer", ErrInvalidRequest)
	}
	return nil
}

// Key returns the cache key of the request.
func (r Request) Key() cache.Key {
	params := make(map[string]string, len(r.Params)+1)
	for name, value := range r.Params {
		params[name] = value
	}
	if r.Operation == OpGet {
		params["id"] = strconv.Itoa(r.ID)
	}
	return cache.Key{
		Resource:  string(r.Resource),
		Operation: string(r.Operation),
		Params:    params,
		Page:      r.Page,
	}
}

// Target returns the origin path and query for the request.
func (r Request) Target() (string, url.Values) {
	if r.Operation == OpGet {
		return "/" + string(r.Resource) + "/" + strconv.Itoa(r.ID), nil
	}

	query := url.Values{}
	for name, value := range r.Params {
		if value != "" {
			query.Set(name, value)
		}
	}
	if r.Page > 0 {
		query.Set("page", strconv.Itoa(r.Page))
	}
	return "/" + string(r.Resource), query
}

// CharacterFilter holds the character list filters understood by the origin.
type CharacterFilter struct {
	Name    string
	Status  string
	Species string
	Gender  string
}

// HasAttributes reports whether any of status, species or gender is set.
func (f CharacterFilter) HasAttributes() bool {
	return f.Status != "" || f.Species != "" || f.Gender != ""
}

func (f CharacterFilter) params() map[string]string {
	return map[string]string{
		"name":    f.Name,
		"status":  f.Status,
		"species": f.Species,
		"gender":  f.Gender,
	}
}

// SeasonCode renders the origin's episode code prefix for a season (3 -> "S03").
func SeasonCode(season int) string {
	return fmt.Sprintf("S%02d", season)
}
