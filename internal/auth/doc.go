// Package auth provides API authentication and authorisation for Tracker Grid.
//
// There are no user accounts. Operators are issued HS256 JWTs with the
// `trackergrid token` command; the token subject names the holder and the
// role claim selects one of two tiers:
//   - viewer: read the grid and the reconnect history
//   - operator: viewer plus filtering, sorting and reconnect actions
//
// Role permissions are a static mapping (no database lookup).
package auth
