package driven

// AdminAuth signs and validates tokens for the admin API surface.
type AdminAuth interface {
	// GenerateToken creates a signed token for the given subject.
	GenerateToken(subject string) (string, error)

	// ParseToken validates a token and returns its subject.
	ParseToken(token string) (subject string, err error)
}
