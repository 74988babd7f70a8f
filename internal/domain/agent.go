package domain

import "strings"

// RoutingAddress locates an agent's phone line on the telephony switch.
type RoutingAddress struct {
	Extension string `json:"extension" yaml:"extension"`
	Host      string `json:"host,omitempty" yaml:"host,omitempty"`
}

// String returns the canonical wire form "extension@host".
func (a RoutingAddress) String() string {
	if a.Host == "" {
		return a.Extension
	}
	return a.Extension + "@" + a.Host
}

// Agent is a directory record for one call-center agent. Records are owned
// by the directory collaborator; this core only reads them.
type Agent struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	Routing      RoutingAddress `json:"routing" yaml:"routing"`
	SupervisorID string         `json:"supervisorId,omitempty" yaml:"supervisor,omitempty"`
	Roles        []string       `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// IsSupervisor reports whether the agent carries the supervisor role.
func (a Agent) IsSupervisor() bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, "supervisor") {
			return true
		}
	}
	return false
}
