package recorder

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/lo"
)

// ActiveSet tracks the accounts that currently own a controller.
// At most one handle exists per account.
type ActiveSet struct {
	sessions cmap.ConcurrentMap[string, *SessionHandle]
}

// NewActiveSet returns an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{sessions: cmap.New[*SessionHandle]()}
}

// Reserve atomically claims account. It returns false when another caller
// already holds it.
func (a *ActiveSet) Reserve(account string) (*SessionHandle, bool) {
	h := NewSessionHandle(account)
	if !a.sessions.SetIfAbsent(account, h) {
		return nil, false
	}
	return h, true
}

// Release removes account if it is still held by h.
func (a *ActiveSet) Release(account string, h *SessionHandle) bool {
	return a.sessions.RemoveCb(account, func(_ string, cur *SessionHandle, exists bool) bool {
		return exists && cur == h
	})
}

// Get returns the handle for account.
func (a *ActiveSet) Get(account string) (*SessionHandle, bool) {
	return a.sessions.Get(account)
}

// Has reports whether account is active.
func (a *ActiveSet) Has(account string) bool {
	return a.sessions.Has(account)
}

// Len is the number of active accounts.
func (a *ActiveSet) Len() int {
	return a.sessions.Count()
}

// Snapshot lists every active session ordered by account.
func (a *ActiveSet) Snapshot() []SessionInfo {
	infos := lo.MapToSlice(a.sessions.Items(), func(_ string, h *SessionHandle) SessionInfo {
		return h.Info()
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Account < infos[j].Account })
	return infos
}
