package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token the conversational front-end forwards
// on behalf of a candidate.
type JWTClaims struct {
	CandidateID int64 `json:"candidate_id"`
	jwt.RegisteredClaims
}
