// Package lifecycle supervises the system phases: provisioning, mesh discovery,
// join or create, normal operation and recovery from connectivity loss.
package lifecycle

import "fmt"

// State is a lifecycle phase.
type State int

const (
	StateInit State = iota
	StateConfigMode
	StateNetworkScan
	StateMeshClient
	StateMeshMaster
	StateOperational
	StateConnectionLost
	StateErrorRecovery
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConfigMode:
		return "config_mode"
	case StateNetworkScan:
		return "network_scan"
	case StateMeshClient:
		return "mesh_client"
	case StateMeshMaster:
		return "mesh_master"
	case StateOperational:
		return "operational"
	case StateConnectionLost:
		return "connection_lost"
	case StateErrorRecovery:
		return "error_recovery"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connecting reports whether the state is part of bringing the mesh up or down.
func (s State) Connecting() bool {
	switch s {
	case StateNetworkScan, StateMeshClient, StateMeshMaster, StateConnectionLost:
		return true
	}
	return false
}
