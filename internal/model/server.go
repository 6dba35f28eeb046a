package model

import "strings"

// ServerID identifies one of the configured panel backends (srv1, srv2, srv3).
type ServerID string

// placeholder marks an intentionally blank setting in the bot's settings file.
const placeholder = "-"

// Server is a panel backend and the credential used to call its application API.
type Server struct {
	ID     ServerID `json:"id" mapstructure:"-"`
	Name   string   `json:"name" mapstructure:"name"`
	Domain string   `json:"domain" mapstructure:"domain"`
	APIKey string   `json:"-" mapstructure:"api_key"`
}

// HasDomain reports whether a real domain is set.
func (s Server) HasDomain() bool {
	return isSet(s.Domain)
}

// HasAPIKey reports whether a real API key is set.
func (s Server) HasAPIKey() bool {
	return isSet(s.APIKey)
}

// Configured reports whether the server can be used for provisioning.
func (s Server) Configured() bool {
	return s.HasDomain() && s.HasAPIKey()
}

// BaseURL returns the domain without a trailing slash, adding https:// when no scheme is given.
func (s Server) BaseURL() string {
	d := strings.TrimRight(strings.TrimSpace(s.Domain), "/")
	if d != "" && !strings.Contains(d, "://") {
		d = "https://" + d
	}
	return d
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != placeholder
}
