package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one logical upstream request.
type Key struct {
	// Resource is the origin collection (e.g. "character", "episode", "location").
	Resource string

	// Operation is the logical operation (e.g. "list", "get", "search").
	Operation string

	// Params are the operation parameters. Empty values are ignored.
	Params map[string]string

	// Page is the requested page. Zero means "not supplied".
	// A positive Page takes precedence over a "page" entry in Params.
	Page int
}

// String generates a deterministic cache key string.
// Format: resource:operation:name1=val1:name2=val2
//
// Parameters (page included) are sorted by name and query-escaped, so two
// keys are equal exactly when every component is equal.
//
// Example:
//
//	character:list:page=2:status=alive
func (k Key) String() string {
	params := make(map[string]string, len(k.Params)+1)
	for name, value := range k.Params {
		if value != "" {
			params[name] = value
		}
	}
	if k.Page > 0 {
		params["page"] = strconv.Itoa(k.Page)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+2)
	parts = append(parts, url.QueryEscape(k.Resource), url.QueryEscape(k.Operation))
	for _, name := range names {
		parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(params[name]))
	}

	return strings.Join(parts, ":")
}
