package services

// AdminAuthority answers whether an opaque identity may decide withdrawals.
// Authentication of the identity itself happens upstream; this is only the
// role check, injected so the queue stays decoupled from env parsing.
type AdminAuthority interface {
	IsAdmin(adminID string) bool
}

// StaticAdminAuthority is an AdminAuthority backed by a fixed identity list.
type StaticAdminAuthority struct {
	admins map[string]struct{}
}

// NewStaticAdminAuthority builds an authority from the configured admin list.
func NewStaticAdminAuthority(adminIDs []string) *StaticAdminAuthority {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &StaticAdminAuthority{admins: admins}
}

func (a *StaticAdminAuthority) IsAdmin(adminID string) bool {
	_, ok := a.admins[adminID]
	return ok
}
