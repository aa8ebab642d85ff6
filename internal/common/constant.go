// Package common contains shared constants, sentinel errors and context
// helpers used across AuthKeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Cookie names written by the HTTP transport.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// GenericInternalMessage is the only text clients see for internal failures.
const GenericInternalMessage = "something went wrong"
