package common

// AuthorizationHeaderName carries the upload bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// ContentTypeOctetStream is used for sealed blobs and raw uploads.
const ContentTypeOctetStream = "application/octet-stream"
