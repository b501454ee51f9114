package common

// ServiceTokenHeaderName is the HTTP header used to carry the caller's
// service token on inbound requests.
const ServiceTokenHeaderName = "Authorization"
