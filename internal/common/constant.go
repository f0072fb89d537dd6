package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// APIKeyHeaderName is the gRPC metadata key carrying the store access key.
// Every request to the store must present it, authenticated or not.
const APIKeyHeaderName = "x-api-key"
