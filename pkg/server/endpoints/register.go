package endpoints

import "github.com/doodlesbykumbi/datamapper-in-go/pkg/server"

// RegisterAll registers every endpoint on s
func RegisterAll(s *server.Server) {
	RegisterStatusEndpoints(s)
	RegisterModelEndpoints(s)
}
