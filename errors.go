package conduitauth

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email, a wrong password,
	// or an inactive account. The three cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by user providers when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a registration collides with an existing email or username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for blank or malformed registration and update fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionCreationFailed wraps session store failures during token issuance.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionStoreUnsupported is returned when an operation needs an optional store capability.
	ErrSessionStoreUnsupported = errors.New("session store does not support this operation")
	// ErrCredentialStoreRequired is returned by Register, Login, and UpdateUser when the
	// user provider cannot look up or create credentials.
	ErrCredentialStoreRequired = errors.New("credential store required")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)
