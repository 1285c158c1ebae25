package app

import (
	"net"
	"time"
)

// dialProbe answers "is the internet reachable" with a bounded TCP dial to
// a well-known resolver. It stands in for the network-management
// collaborator on stations without one.
type dialProbe struct{}

func (dialProbe) Online() bool {
	conn, err := net.DialTimeout("tcp", "1.1.1.1:53", 3*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
