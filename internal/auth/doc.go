// Package auth authenticates relay requests.
//
// Clients present an HS256 JWT in the Authorization header. The "sub" claim
// is the user the bearer acts as: a stream request for /api/users/{id}/...
// must carry a token whose subject is id.
//
//	verifier := auth.NewJWTVerifier([]byte(cfg.Relay.JWTSecret))
//	mux.Handle("GET /stream", auth.Middleware(verifier)(handler))
//
// Tokens are minted with JWTVerifier.Generate, which the CLI exposes as the
// "token" command.
package auth
