package api

import "github.com/okian/fitrec/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger shared by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBodyBytes caps request bodies on the write endpoints.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}
