package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence contract the handler routes requests to.
type Store interface {
	Create(ctx context.Context, fields map[string]types.Value) (*types.Entity, error)
	Get(ctx context.Context, id string) (*types.Entity, error)
	GetAll(ctx context.Context, includeArchived, archivedOnly bool) ([]*types.Entity, error)
	Update(ctx context.Context, id string, u types.Update) (*types.Entity, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Domain pairs a domain configuration with its store.
type Domain struct {
	Spec  *types.DomainSpec
	Store Store
}

// Options configure NewHandler.
type Options struct {
	Version string
	// Ping backs /readyz; nil means always ready.
	Ping func(context.Context) error
	// OpenAPI is served at /openapi.json when set.
	OpenAPI *openapi3.T
}

// servicePaths are top-level paths that no domain may claim.
var servicePaths = map[string]bool{"healthz": true, "readyz": true, "openapi.json": true}

// NewHandler builds the REST routes for every domain plus the service
// endpoints. It fails when two domains share an identifier or a domain
// collides with a service path.
func NewHandler(logger *slog.Logger, opts Options, domains ...Domain) (http.Handler, error) {
	seen := make(map[string]bool, len(domains))
	for _, d := range domains {
		if servicePaths[d.Spec.Domain] || seen[d.Spec.Domain] {
			return nil, fmt.Errorf("domain %q: path already in use", d.Spec.Domain)
		}
		seen[d.Spec.Domain] = true
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", Healthz)
	mux.HandleFunc("GET /readyz", Readyz(opts.Ping))
	if opts.OpenAPI != nil {
		doc := opts.OpenAPI
		mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, doc)
		})
	}

	index := map[string]any{
		"message": "Welcome to Ideate API",
		"version": opts.Version,
	}
	var infos []map[string]any
	for _, d := range domains {
		dh := &domainHandler{spec: d.Spec, store: d.Store, logger: logger.With("domain", d.Spec.Domain)}
		dh.register(mux)
		infos = append(infos, map[string]any{
			"domain":      d.Spec.Domain,
			"label":       d.Spec.Label,
			"labelPlural": d.Spec.LabelPlural,
			"endpoints":   dh.endpoints(),
		})
	}
	index["domains"] = infos
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, index)
	})

	return mux, nil
}

type domainHandler struct {
	spec   *types.DomainSpec
	store  Store
	logger *slog.Logger
}

func (h *domainHandler) register(mux *http.ServeMux) {
	base := "/" + h.spec.Domain
	mux.HandleFunc("GET "+base, h.list)
	mux.HandleFunc("POST "+base, h.create)
	mux.HandleFunc("GET "+base+"/config", h.config)
	mux.HandleFunc("GET "+base+"/{id}", h.get)
	mux.HandleFunc("PUT "+base+"/{id}", h.update)
	mux.HandleFunc("DELETE "+base+"/{id}", h.delete)
	mux.HandleFunc("POST "+base+"/{id}/archive", h.setArchived(true))
	mux.HandleFunc("POST "+base+"/{id}/restore", h.setArchived(false))
}

func (h *domainHandler) endpoints() map[string]string {
	base := "/" + h.spec.Domain
	plural, label := h.spec.LabelPlural, h.spec.Label
	out := map[string]string{
		"GET " + base:             "List " + plural,
		"GET " + base + "/<id>":   "Get a " + label,
		"GET " + base + "/config": label + " configuration",
	}
	if h.spec.Features.Create {
		out["POST "+base] = "Create a " + label
	}
	if h.spec.Features.Update {
		out["PUT "+base+"/<id>"] = "Update a " + label
	}
	if h.spec.Features.Delete {
		out["DELETE "+base+"/<id>"] = "Delete a " + label
	}
	if h.spec.Features.Archive {
		out["POST "+base+"/<id>/archive"] = "Archive a " + label
		out["POST "+base+"/<id>/restore"] = "Restore a " + label
	}
	return out
}

func queryBool(r *http.Request, key string) bool {
	return strings.EqualFold(r.URL.Query().Get(key), "true")
}

func (h *domainHandler) list(w http.ResponseWriter, r *http.Request) {
	entities, err := h.store.GetAll(r.Context(), queryBool(r, "includeArchived"), queryBool(r, "archivedOnly"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" && h.spec.Features.Search {
		matched := entities[:0]
		for _, e := range entities {
			if e.Matches(h.spec, q) {
				matched = append(matched, e)
			}
		}
		entities = matched
	}
	writeJSON(w, http.StatusOK, entities)
}

func (h *domainHandler) create(w http.ResponseWriter, r *http.Request) {
	if !h.spec.Features.Create {
		h.disabled(w, "Create")
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	fields, err := types.DecodeFields(h.spec, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.store.Create(r.Context(), fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setETag(w, e)
	writeJSON(w, http.StatusCreated, e)
}

func (h *domainHandler) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.spec)
}

func (h *domainHandler) get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setETag(w, e)
	writeJSON(w, http.StatusOK, e)
}

func (h *domainHandler) update(w http.ResponseWriter, r *http.Request) {
	if !h.spec.Features.Update {
		h.disabled(w, "Update")
		return
	}
	id := r.PathValue("id")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	expected, err := ifMatchVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	u := types.Update{ExpectedVersion: expected}
	if raw, present := body["archived"]; present && raw != nil {
		if !h.spec.Features.Archive {
			writeError(w, http.StatusBadRequest, "Archive feature not enabled for this domain")
			return
		}
		archived, isBool := raw.(bool)
		if !isBool {
			writeError(w, http.StatusBadRequest, "archived must be a boolean")
			return
		}
		u.Archived = &archived
	}
	if u.Fields, err = types.DecodeFields(h.spec, body); err != nil {
		h.fail(w, r, err)
		return
	}

	e, err := h.store.Update(r.Context(), id, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setETag(w, e)
	writeJSON(w, http.StatusOK, e)
}

func (h *domainHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.spec.Features.Delete {
		h.disabled(w, "Delete")
		return
	}
	ok, err := h.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, h.spec.Label+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": h.spec.Label + " deleted successfully"})
}

func (h *domainHandler) setArchived(archived bool) http.HandlerFunc {
	verb := "restored"
	if archived {
		verb = "archived"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.spec.Features.Archive {
			writeError(w, http.StatusBadRequest, "Archive feature not enabled for this domain")
			return
		}
		id := r.PathValue("id")
		e, err := h.store.Get(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if e.Archived != archived {
			if _, err := h.store.Update(r.Context(), id, types.Update{Archived: &archived}); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("%s %s", h.spec.Label, verb),
			"id":      id,
		})
	}
}

// readBody decodes a non-empty JSON object. It writes the 400 response and
// returns false when the body is missing, empty or malformed.
func (h *domainHandler) readBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return nil, false
	}
	return body, true
}

func (h *domainHandler) disabled(w http.ResponseWriter, op string) {
	writeError(w, http.StatusMethodNotAllowed, op+" not enabled for this domain")
}

// fail maps store and validation errors onto HTTP responses.
func (h *domainHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := types.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  strings.Join(ve.Messages(), "; "),
			"errors": ve.Errors,
		})
		return
	}
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrInvalidID):
		writeError(w, http.StatusNotFound, h.spec.Label+" not found")
	case errors.Is(err, types.ErrConcurrentModification):
		writeError(w, http.StatusConflict, h.spec.Label+" was modified by another request")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		requestID, _ := RequestIDFromContext(r.Context())
		h.logger.Error("request failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func setETag(w http.ResponseWriter, e *types.Entity) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(e.Version, 10)))
}

// ifMatchVersion parses an If-Match header carrying an entity version.
// A missing header or "*" yields zero.
func ifMatchVersion(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.TrimPrefix(v, "W/")
	if unq, err := strconv.Unquote(v); err == nil {
		v = unq
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 0, errors.New("If-Match must be an entity version")
	}
	return n, nil
}
