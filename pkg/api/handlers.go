package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sketchlab/streamsketch/pkg/keeper"
	"github.com/sketchlab/streamsketch/pkg/sketches"
	"github.com/sketchlab/streamsketch/pkg/storage"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

type CreateSketchRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// Bloom filter: filter size in bits plus one or more hash algorithms.
	Size    int      `json:"size,omitempty"`
	HashFns []string `json:"hash_fns,omitempty"`

	// Count-min sketch: matrix shape; hash_fns must have one entry per row.
	Rows int `json:"rows,omitempty"`
	Cols int `json:"cols,omitempty"`

	// HyperLogLog: register count (power of two >= 16) and one algorithm.
	Registers int    `json:"registers,omitempty"`
	HashFn    string `json:"hash_fn,omitempty"`
}

func toAlgs(names []string) []sketches.HashAlg {
	algs := make([]sketches.HashAlg, len(names))
	for i, n := range names {
		algs[i] = sketches.HashAlg(n)
	}
	return algs
}

func buildSketch(req CreateSketchRequest) (sketches.Sketch, error) {
	switch sketches.SketchType(req.Type) {
	case sketches.BloomFilterType:
		return sketches.NewBloomFilter(req.Size, toAlgs(req.HashFns))
	case sketches.CountMinSketchType:
		return sketches.NewCountMinSketch(req.Rows, req.Cols, toAlgs(req.HashFns))
	case sketches.HyperLogLogType:
		return sketches.NewHyperLogLog(req.Registers, sketches.HashAlg(req.HashFn))
	}
	return nil, fmt.Errorf("unknown sketch type %q", req.Type)
}

// describe returns the construction parameters of a sketch for metadata
// responses and snapshot records.
func describe(s sketches.Sketch) map[string]any {
	switch v := s.(type) {
	case *sketches.BloomFilter:
		return map[string]any{"size": v.Size(), "hashes": v.HashCount(), "set_bits": v.SetBits()}
	case *sketches.CountMinSketch:
		return map[string]any{"rows": v.Rows(), "cols": v.Cols(), "total_count": v.TotalCount()}
	case *sketches.HyperLogLog:
		return map[string]any{"registers": v.Registers()}
	}
	return nil
}

func (h *Handler) sketchInfo(r *http.Request, k *keeper.Keeper) (sketches.SketchInfo, error) {
	snap, err := k.Snapshot(r.Context())
	if err != nil {
		return sketches.SketchInfo{}, err
	}
	return sketches.SketchInfo{
		Type:       snap.Type(),
		Name:       k.Name(),
		CreatedAt:  k.CreatedAt().Unix(),
		Parameters: describe(snap),
	}, nil
}

func (h *Handler) PostCreateSketch(w http.ResponseWriter, r *http.Request) {
	var req CreateSketchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name required"))
		return
	}

	s, err := buildSketch(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	k, err := h.registry.Create(req.Name, s)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	info, err := h.sketchInfo(r, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) GetSketches(w http.ResponseWriter, r *http.Request) {
	infos := make([]sketches.SketchInfo, 0)
	for _, name := range h.registry.List() {
		k, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		info, err := h.sketchInfo(r, k)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, JSON{"sketches": infos})
}

func (h *Handler) GetSketch(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	k, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", name))
		return
	}
	info, err := h.sketchInfo(r, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) DeleteSketch(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !h.registry.Drop(name) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", name))
		return
	}
	writeJSON(w, http.StatusOK, JSON{"status": "dropped", "name": name})
}

type UpdateRequest struct {
	Value string `json:"value"`
}

func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	k, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", name))
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json"))
		return
	}

	if err := k.Update(r.Context(), []byte(req.Value)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	snap, err := k.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sketchUpdatesTotal.WithLabelValues(name, string(snap.Type())).Inc()
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	k, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", name))
		return
	}

	value := r.URL.Query().Get("value")
	ans, err := k.Query(r.Context(), []byte(value))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sketchQueriesTotal.WithLabelValues(name, string(ans.SketchType)).Inc()
	writeJSON(w, http.StatusOK, ans)
}

type UnionRequest struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Name  string `json:"name"`
}

// PostUnion merges two count-min sketches into a new named sketch.
func (h *Handler) PostUnion(w http.ResponseWriter, r *http.Request) {
	var req UnionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name required"))
		return
	}

	snaps := make([]sketches.Sketch, 0, 2)
	for _, operand := range []string{req.Left, req.Right} {
		k, ok := h.registry.Get(operand)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", operand))
			return
		}
		snap, err := k.Snapshot(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		snaps = append(snaps, snap)
	}

	left, okL := snaps[0].(*sketches.CountMinSketch)
	right, okR := snaps[1].(*sketches.CountMinSketch)
	if !okL || !okR {
		writeError(w, http.StatusBadRequest, fmt.Errorf("union requires two count-min sketches"))
		return
	}

	merged, err := left.Union(right)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	k, err := h.registry.Create(req.Name, merged)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	info, err := h.sketchInfo(r, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) PostSave(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	k, ok := h.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no sketch named %q", name))
		return
	}
	snap, err := k.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	params, _ := json.Marshal(describe(snap))
	err = h.store.Save(r.Context(), storage.Snapshot{
		Name:       name,
		Type:       string(snap.Type()),
		Data:       snap.Serialize(),
		Parameters: string(params),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"status": "saved", "name": name})
}

func (h *Handler) PostLoad(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, err := h.store.Load(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s, err := sketches.Deserialize(sketches.SketchType(snap.Type), snap.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if k, ok := h.registry.Get(name); ok {
		if err := k.Replace(r.Context(), s); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else if _, err := h.registry.Create(name, s); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"status": "loaded", "name": name, "type": snap.Type})
}

// GetBloomAdvice answers sizing questions for a bloom filter: the optimal
// hash count for m bits and n expected insertions, and the estimated
// false-positive rate at k hashes (k defaults to the optimum).
func (h *Handler) GetBloomAdvice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, errM := strconv.Atoi(q.Get("m"))
	n, errN := strconv.Atoi(q.Get("n"))
	if errM != nil || errN != nil || m <= 0 || n <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("positive integer m and n required"))
		return
	}

	optimal := sketches.OptimalNumberOfHashes(m, n)
	k := optimal
	if raw := q.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("k must be a positive integer"))
			return
		}
		k = parsed
	}

	writeJSON(w, http.StatusOK, JSON{
		"m":                   m,
		"n":                   n,
		"k":                   k,
		"optimal_hashes":      optimal,
		"false_positive_rate": sketches.FalsePositiveRate(m, n, k),
	})
}
