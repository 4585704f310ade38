// Package auth provides authentication for campus-chat.
//
// # Components
//
//   - JWTVerifier: HS256 bearer tokens whose subject is the user id
//   - HashPassword/CheckPassword: bcrypt password storage
//   - Middleware: HTTP middleware that verifies a token, loads the user,
//     and attaches it to the request context
//
// Identity always comes from the surrounding transport (header or handshake
// query param), never from an in-band frame. Handlers read it back with
// UserFromContext.
package auth
