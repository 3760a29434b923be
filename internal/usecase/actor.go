package usecase

// Actor is the authenticated caller as seen by the use cases.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

// CanAccess reports whether the actor may read or act on data owned by ownerID.
func (a Actor) CanAccess(ownerID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == ownerID)
}
