package endpoints

import (
	"net/http"
	"os"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server"
)

// StatusResponse represents the response from /
type StatusResponse struct {
	Version      string   `json:"version"`
	Repositories []string `json:"repositories"`
	Models       int      `json:"models"`
}

// RegisterStatusEndpoints registers the status endpoint
func RegisterStatusEndpoints(s *server.Server) {
	// GET / - Status (no auth required)
	s.Router.HandleFunc("/", handleStatus(s)).Methods("GET")
}

func handleStatus(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("DM_VERSION_DISPLAY")
		if version == "" {
			version = "0.1.0"
		}
		mapper := s.Mapper()
		respondWithJSON(w, http.StatusOK, StatusResponse{
			Version:      version,
			Repositories: mapper.RepositoryNames(),
			Models:       len(mapper.Models()),
		})
	}
}
