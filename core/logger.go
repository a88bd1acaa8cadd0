package core

// Logger is any service that can log & report events.
// args may carry errors, map[string]interface{} extras and at most one Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies who triggered an operation (taken from the request token, never from ambient state).
type Actor struct {
	ID       string
	Username string
	Email    string
}
