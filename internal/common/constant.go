package common

const (
	// AuthorizationHeaderName carries the session token on authenticated requests.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the expected authorization scheme prefix.
	BearerScheme = "Bearer"
)
