package api

import "strings"

const (
	roleAdmin     = "admin"
	roleInspector = "inspector"
	roleViewer    = "viewer"
)

// registrationRole picks the role for a self-registered account: listed
// admin emails become admins, everyone else starts as an inspector.
func (s *Server) registrationRole(email string) string {
	if _, ok := s.adminEmails[normalizeEmail(email)]; ok {
		return roleAdmin
	}
	return roleInspector
}

func normalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case roleAdmin, roleInspector:
		return r
	default:
		return roleViewer
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
