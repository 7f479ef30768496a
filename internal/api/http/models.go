package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-motivation/internal/model"
)

// Catalog is satisfied by *registry.Registry.
type Catalog interface {
	Keys() []string
	Get(key string) (*model.Bundle, bool)
	Origin(key string) string
	Len() int
}

type modelSummary struct {
	Key      string          `json:"key"`
	Context  *model.KeyParts `json:"context,omitempty"`
	Features []string        `json:"features"`
}

type modelDetail struct {
	modelSummary
	Clusters []int    `json:"clusters"`
	Stats    []string `json:"stats"`
	Targets  []string `json:"targets"`
	Origin   string   `json:"origin"`
}

func summarize(key string, b *model.Bundle) modelSummary {
	s := modelSummary{Key: key, Features: b.Features}
	if p, ok := model.ParseKey(key); ok {
		s.Context = &p
	}
	return s
}

// GET /models
func ListModelsHandler(c Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("game_mode"))
		out := make([]modelSummary, 0, c.Len())
		for _, k := range c.Keys() {
			b, _ := c.Get(k)
			s := summarize(k, b)
			if q != "" && (s.Context == nil || s.Context.GameMode != q) {
				continue
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /models/{key}
func GetModelHandler(c Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		b, ok := c.Get(key)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResp{Error: "no model for this configuration", Kind: string(model.KindModelNotFound), Key: key})
			return
		}
		writeJSON(w, http.StatusOK, modelDetail{
			modelSummary: summarize(key, b),
			Clusters:     b.ClusterIDs(),
			Stats:        b.StatNames(),
			Targets:      targetNames(b),
			Origin:       c.Origin(key),
		})
	}
}

func targetNames(b *model.Bundle) []string {
	ids := b.ClusterIDs()
	if len(ids) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, id := range ids {
		for n := range b.PercentileTargets[id] {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}
