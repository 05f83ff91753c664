package domain

// CredentialStore persists the authenticated session across process
// restarts. Load before any Save reports absence, not an error. A failing
// backend surfaces ErrStorageUnavailable and must never panic; callers
// treat that as "no session" and may continue in memory only.
type CredentialStore interface {
	Save(session Session) error
	Load() (Session, bool, error)
	Clear() error
}
