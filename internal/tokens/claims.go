package tokens

import "github.com/golang-jwt/jwt/v5"

// Kind separates access from refresh tokens signed with the same key.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	Type Kind `json:"typ"`
	jwt.RegisteredClaims
}
