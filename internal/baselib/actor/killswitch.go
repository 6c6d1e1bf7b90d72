package actor

import "sync/atomic"

// KillSwitch is a tree of linked kill flags. Killing a node trips every
// descendant spawned from it via Child, without needing to walk the tree:
// each child holds a pointer to its parent's flag and consults it alongside
// its own. Actors poll Killed() at the top of their handler loop, before
// each message; a handler already running is not interrupted.
type KillSwitch struct {
	killed atomic.Bool
	parent *KillSwitch
}

// NewKillSwitch creates a root kill switch with no parent.
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Child creates a descendant kill switch linked to this one. Killing the
// parent (or any ancestor) makes the child report Killed() == true, but
// killing a child never affects its parent or siblings.
func (k *KillSwitch) Child() *KillSwitch {
	return &KillSwitch{parent: k}
}

// Kill trips this kill switch. It does not affect the parent, only this
// node and whatever descendants are spawned from it.
func (k *KillSwitch) Kill() {
	k.killed.Store(true)
}

// Killed reports whether this kill switch, or any ancestor in its chain,
// has been tripped.
func (k *KillSwitch) Killed() bool {
	for node := k; node != nil; node = node.parent {
		if node.killed.Load() {
			return true
		}
	}

	return false
}
