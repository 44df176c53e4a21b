// Package auth issues and verifies the session tokens handed to players on
// login.
//
// A successful LOGIN is answered with LOGIN_SUCCESS:<token>. The token is an
// HS256 JWT whose subject is the username; the HTTP API accepts it as a
// Bearer token on /api/me.
package auth
