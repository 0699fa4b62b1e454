package endpoints

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/property"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server"
)

// ModelResponse describes one model
type ModelResponse struct {
	Name          string                 `json:"name"`
	Parent        string                 `json:"parent,omitempty"`
	StorageName   string                 `json:"storage_name"`
	Properties    []PropertyResponse     `json:"properties"`
	Relationships []RelationshipResponse `json:"relationships"`
}

// PropertyResponse describes one property
type PropertyResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Key      bool   `json:"key,omitempty"`
	Lazy     bool   `json:"lazy,omitempty"`
	Nullable bool   `json:"nullable"`
}

// RelationshipResponse describes one relationship
type RelationshipResponse struct {
	Name        string `json:"name"`
	Cardinality string `json:"cardinality"`
	Model       string `json:"model,omitempty"`
}

// RegisterModelEndpoints registers the model browsing endpoints
func RegisterModelEndpoints(s *server.Server) {
	// GET /models - Model definitions
	s.Router.HandleFunc("/models", handleListModels(s)).Methods("GET")

	// GET /{repository}/{model} - Resources matching the query parameters
	s.Router.HandleFunc("/{repository}/{model}", handleListResources(s)).Methods("GET")

	// GET /{repository}/{model}/{key} - One resource, composite keys comma separated
	s.Router.HandleFunc("/{repository}/{model}/{key}", handleGetResource(s)).Methods("GET")

	// GET /{repository}/{model}/{key}/{relationship} - Related resources
	s.Router.HandleFunc("/{repository}/{model}/{key}/{relationship}", handleGetRelationship(s)).Methods("GET")
}

func handleListModels(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mapper := s.Mapper()
		repository := r.URL.Query().Get("repository")
		if repository == "" {
			repository = mapper.DefaultRepositoryName()
		}
		if _, err := mapper.Adapter(repository); err != nil {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}

		models := mapper.Models()
		response := make([]ModelResponse, 0, len(models))
		for _, m := range models {
			response = append(response, describeModel(m, repository))
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

func describeModel(m *datamapper.Model, repository string) ModelResponse {
	resp := ModelResponse{
		Name:          m.Name(),
		StorageName:   m.StorageName(repository),
		Properties:    []PropertyResponse{},
		Relationships: []RelationshipResponse{},
	}
	if m.Parent() != nil {
		resp.Parent = m.Parent().Name()
	}
	for _, p := range m.Properties(repository).All() {
		resp.Properties = append(resp.Properties, PropertyResponse{
			Name:     p.Name(),
			Type:     p.Type().Name(),
			Key:      p.IsKey(),
			Lazy:     p.IsLazy(),
			Nullable: p.IsNullable(),
		})
	}
	for _, rel := range m.Relationships(repository) {
		desc := RelationshipResponse{Name: rel.Name(), Cardinality: rel.Cardinality().String()}
		target, err := rel.ChildModel()
		if rel.Cardinality() == datamapper.CardinalityManyToOne {
			target, err = rel.ParentModel()
		}
		if err == nil {
			desc.Model = target.Name()
		}
		resp.Relationships = append(resp.Relationships, desc)
	}
	return resp
}

func handleListResources(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		mapper := s.Mapper()
		model, ok := mapper.Model(vars["model"])
		if !ok {
			respondWithError(w, http.StatusNotFound, "model not found: "+vars["model"])
			return
		}
		opts, err := queryOptions(r.URL.Query())
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		var response []map[string]any
		err = mapper.Within(r.Context(), vars["repository"], func(ctx context.Context) error {
			resources, err := model.All(ctx, opts)
			if err != nil {
				return err
			}
			response = make([]map[string]any, len(resources))
			for i, res := range resources {
				response[i] = attributes(res)
			}
			return nil
		})
		if err != nil {
			respondWithMapperError(s, w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

func handleGetResource(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		mapper := s.Mapper()
		model, ok := mapper.Model(vars["model"])
		if !ok {
			respondWithError(w, http.StatusNotFound, "model not found: "+vars["model"])
			return
		}

		var response map[string]any
		err := mapper.Within(r.Context(), vars["repository"], func(ctx context.Context) error {
			res, err := getByKey(ctx, model, vars["key"])
			if err != nil {
				return err
			}
			response = attributes(res)
			return nil
		})
		if err != nil {
			respondWithMapperError(s, w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

func handleGetRelationship(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		mapper := s.Mapper()
		model, ok := mapper.Model(vars["model"])
		if !ok {
			respondWithError(w, http.StatusNotFound, "model not found: "+vars["model"])
			return
		}

		var response any
		err := mapper.Within(r.Context(), vars["repository"], func(ctx context.Context) error {
			res, err := getByKey(ctx, model, vars["key"])
			if err != nil {
				return err
			}
			related, err := res.Get(ctx, vars["relationship"])
			if err != nil {
				return err
			}
			switch v := related.(type) {
			case nil:
				response = nil
			case *datamapper.ManyToOneProxy:
				parent, err := v.Resolve(ctx)
				if err != nil {
					return err
				}
				response = attributes(parent)
			case *datamapper.OneToManyProxy:
				children, err := v.All(ctx)
				if err != nil {
					return err
				}
				response = attributeList(children)
			case *datamapper.ManyToManyProxy:
				targets, err := v.All(ctx)
				if err != nil {
					return err
				}
				response = attributeList(targets)
			default:
				return &datamapper.NoMethodError{Name: vars["relationship"], Receiver: res.String()}
			}
			return nil
		})
		if err != nil {
			respondWithMapperError(s, w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}

func getByKey(ctx context.Context, model *datamapper.Model, raw string) (*datamapper.Resource, error) {
	parts := strings.Split(raw, ",")
	key := make([]any, len(parts))
	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err != nil {
			return nil, errors.Join(datamapper.ErrInvalidArgument, err)
		}
		key[i] = unescaped
	}
	return model.GetOrFail(ctx, key...)
}

// queryOptions turns query parameters into finder options: limit, offset
// and a comma separated order are reserved, every other parameter is an
// equality condition.
func queryOptions(values url.Values) (datamapper.Options, error) {
	opts := datamapper.Options{Conditions: map[string]any{}}
	for name, vals := range values {
		value := vals[len(vals)-1]
		switch name {
		case "limit", "offset":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return opts, errors.New("invalid " + name + ": " + value)
			}
			if name == "limit" {
				opts.Limit = n
			} else {
				opts.Offset = n
			}
		case "order":
			opts.Order = strings.Split(value, ",")
		default:
			if len(vals) > 1 {
				opts.Conditions[name] = vals
			} else {
				opts.Conditions[name] = value
			}
		}
	}
	return opts, nil
}

// attributes returns the loaded property values of res and its model name.
func attributes(res *datamapper.Resource) map[string]any {
	if res == nil {
		return nil
	}
	out := res.LoadedAttributes()
	out["_model"] = res.Model().Name()
	return out
}

func attributeList(resources []*datamapper.Resource) []map[string]any {
	out := make([]map[string]any, len(resources))
	for i, res := range resources {
		out[i] = attributes(res)
	}
	return out
}

func respondWithMapperError(s *server.Server, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, datamapper.ErrObjectNotFound),
		errors.Is(err, datamapper.ErrAdapterNotSetUp),
		errors.Is(err, datamapper.ErrNoMethod),
		errors.Is(err, datamapper.ErrRelationshipNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, datamapper.ErrInvalidArgument),
		errors.Is(err, datamapper.ErrUnknownProperty),
		errors.Is(err, property.ErrTypecast):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		s.Logger.Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
