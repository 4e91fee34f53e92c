package api

import "time"

func (s *Server) now() time.Time {
	if s.location == nil {
		return s.clock().UTC()
	}
	return s.clock().In(s.location)
}
