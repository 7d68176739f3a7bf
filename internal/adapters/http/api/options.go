package api

import (
	"time"

	"github.com/okian/trustscore/pkg/logger"
)

// Option configures the Server.
type Option func(*Server)

// WithAdminToken gates the admin routes behind the X-Admin-Token header.
// An empty token leaves them open.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

// WithRequestTimeout bounds how long a handler may run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
