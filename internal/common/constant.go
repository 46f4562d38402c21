package common

const (
	// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// AccessTokenCookieName is the cookie consulted when no Authorization
	// header is present.
	AccessTokenCookieName = "token"
)
