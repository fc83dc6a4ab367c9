// package services contains the HTTP client for the Spotify Web API.
//
// The client is a pure transport concern: it knows nothing about users or
// catalog entities. Its one piece of shared mutable state is the
// [RateLimiter] cooldown gate, which is account-wide because the provider
// rate-limits the application's credentials collectively, not per user.
//
// Response types are based on
// https://developer.spotify.com/documentation/web-api/reference/
package services
