package middleware

// contextKey is a private type for context values set by middleware.
type contextKey string
