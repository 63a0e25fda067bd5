package gymgate

import "github.com/google/uuid"

// HasPrincipalUUID reports whether the session carries a parseable principal id.
func HasPrincipalUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := uuid.Parse(session.GetPrincipalID())
	return err == nil
}
