package presence

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Role answers whether the local session holds host authority.
type Role interface {
	IsHost() bool
}

// ForceMic builds a host_force_mic action. Non-hosts get ErrNotHost and no
// action is constructed. The server re-validates; this is not the security boundary.
func ForceMic(r Role, target domain.UserID, muted bool) (core.Action, error) {
	if r == nil || !r.IsHost() {
		return core.Action{}, core.ErrNotHost
	}
	return core.Action{
		Action:       core.ActionHostForceMic,
		TargetUserID: target,
		Muted:        core.Bool(muted),
	}, nil
}

func ForceCam(r Role, target domain.UserID, off bool) (core.Action, error) {
	if r == nil || !r.IsHost() {
		return core.Action{}, core.ErrNotHost
	}
	return core.Action{
		Action:       core.ActionHostForceCam,
		TargetUserID: target,
		Off:          core.Bool(off),
	}, nil
}

// PermitOutbound is the last check on the send path.
func PermitOutbound(r Role, a core.Action) error {
	if a.Action.Privileged() && (r == nil || !r.IsHost()) {
		return core.ErrNotHost
	}
	return nil
}

// HostOnly is a Role with a fixed answer.
type HostOnly bool

func (h HostOnly) IsHost() bool { return bool(h) }
