package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "get by id",
			key: Key{
				Resource:  "character",
				Operation: "get",
				Params:    map[string]string{"id": "1"},
			},
			want: "character:get:id=1",
		},
		{
			name: "list with page",
			key: Key{
				Resource:  "episode",
				Operation: "list",
				Page:      3,
			},
			want: "episode:list:page=3",
		},
		{
			name: "params sorted alphabetically with page",
			key: Key{
				Resource:  "character",
				Operation: "list",
				Params: map[string]string{
					"status":  "alive",
					"gender":  "female",
					"species": "human",
				},
				Page: 1,
			},
			want: "character:list:gender=female:page=1:species=human:status=alive",
		},
		{
			name: "empty params omitted",
			key: Key{
				Resource:  "character",
				Operation: "filter",
				Params: map[string]string{
					"status": "dead",
					"gender": "",
				},
			},
			want: "character:filter:status=dead",
		},
		{
			name: "values escaped",
			key: Key{
				Resource:  "location",
				Operation: "search",
				Params:    map[string]string{"name": "Earth (C-137):x=1"},
			},
			want: "location:search:name=Earth+%28C-137%29%3Ax%3D1",
		},
		{
			name: "page overrides page param",
			key: Key{
				Resource:  "episode",
				Operation: "list",
				Params:    map[string]string{"page": "9"},
				Page:      2,
			},
			want: "episode:list:page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKey_Determinism ensures same input always produces same key
func TestKey_Determinism(t *testing.T) {
	key := Key{
		Resource:  "character",
		Operation: "list",
		Params: map[string]string{
			"name":    "rick",
			"status":  "alive",
			"species": "human",
			"gender":  "male",
		},
		Page: 4,
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		// Rebuild the map each time so iteration order varies.
		clone := Key{Resource: key.Resource, Operation: key.Operation, Page: key.Page, Params: map[string]string{}}
		for k, v := range key.Params {
			clone.Params[k] = v
		}
		if got := clone.String(); got != first {
			t.Fatalf("iteration %d: %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestKey_DifferentParamsDifferentKeys(t *testing.T) {
	base := Key{
		Resource:  "character",
		Operation: "list",
		Params:    map[string]string{"name": "rick", "status": "alive"},
		Page:      1,
	}

	variants := []Key{
		{Resource: "episode", Operation: "list", Params: base.Params, Page: 1},
		{Resource: "character", Operation: "filter", Params: base.Params, Page: 1},
		{Resource: "character", Operation: "list", Params: base.Params, Page: 2},
		{Resource: "character", Operation: "list", Params: map[string]string{"name": "rick", "status": "dead"}, Page: 1},
		{Resource: "character", Operation: "list", Params: map[string]string{"name": "morty", "status": "alive"}, Page: 1},
		{Resource: "character", Operation: "list", Params: map[string]string{"name": "rick"}, Page: 1},
		{Resource: "character", Operation: "list", Params: map[string]string{"name": "rick:status=alive"}, Page: 1},
	}

	seen := map[string]bool{base.String(): true}
	for _, v := range variants {
		s := v.String()
		if seen[s] {
			t.Errorf("key collision for %+v: %s", v, s)
		}
		seen[s] = true
	}
}
