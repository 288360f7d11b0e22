package http

import (
	"github.com/gin-gonic/gin"
)

// Server wraps the configured gin engine behind a single Run entrypoint so
// main only deals with an address.
type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// Run blocks serving the API and websocket routes on address.
func (s *Server) Run(address string) error {
	return s.Engine.Run(address)
}
