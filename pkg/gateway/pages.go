package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// pageInfo is the pagination block of an origin collection document.
type pageInfo struct {
	Info struct {
		Count int `json:"count"`
		Pages int `json:"pages"`
	} `json:"info"`
}

// FetchPage resolves one page of a collection through the cache and reports
// the total page count announced by the origin. It satisfies
// pagination.PageFetcher, which the cache warm-up uses to walk collections.
func (r *Resolver) FetchPage(ctx context.Context, resource string, page int) (json.RawMessage, int, error) {
	res, err := ParseResource(resource)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, fmt.Errorf("%w: page must be a positive integer", ErrInvalidRequest)
	}

	payload, err := r.Resolve(ctx, Request{Resource: res, Operation: OpList, Page: page})
	if err != nil {
		return nil, 0, err
	}

	var info pageInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, 0, fmt.Errorf("decode page info for %s page %d: %w", resource, page, err)
	}
	if info.Info.Pages < 1 {
		return payload, 1, nil
	}
	return payload, info.Info.Pages, nil
}
