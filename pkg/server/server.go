package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
)

type Server struct {
	Router *mux.Router
	Logger zerolog.Logger
	mapper atomic.Pointer[datamapper.Mapper]
	srv    *http.Server
}

func NewServer(
	mapper *datamapper.Mapper,
	logger zerolog.Logger,
	host string,
	port string,
) *Server {

	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
			handlers.CombinedLoggingHandler(logger, router),
		),
		Addr:         host + ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	s := &Server{
		Router: router,
		Logger: logger,
		srv:    srv,
	}
	s.mapper.Store(mapper)
	return s
}

// Mapper returns the mapper requests are served from.
func (s *Server) Mapper() *datamapper.Mapper {
	return s.mapper.Load()
}

// SetMapper replaces the mapper for subsequent requests, e.g. after a schema
// reload. Requests in flight finish with the previous one.
func (s *Server) SetMapper(mapper *datamapper.Mapper) {
	s.mapper.Store(mapper)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
