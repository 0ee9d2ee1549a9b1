package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextActorID  = "actor_id"
	ContextAgencyID = "agency_id"
)

type identityClaims struct {
	UserID   string `json:"userId"`
	AgencyID string `json:"agencyId"`
	jwt.RegisteredClaims
}

// Identity extracts the acting-user and agency identifiers into the gin
// context. Headers win; a bearer token's claims are the fallback. The
// identifiers are opportunistic: nothing is enforced here, they only
// feed audit attribution and ownership defaults.
func Identity(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader("X-User-ID")
		agencyID := c.GetHeader("X-Agency-ID")

		if (actorID == "" || agencyID == "") && jwtSecret != "" {
			if claims := bearerClaims(c.GetHeader("Authorization"), jwtSecret); claims != nil {
				if actorID == "" {
					actorID = claims.UserID
				}
				if agencyID == "" {
					agencyID = claims.AgencyID
				}
			}
		}

		c.Set(ContextActorID, actorID)
		c.Set(ContextAgencyID, agencyID)
		c.Next()
	}
}

func bearerClaims(authHeader, secret string) *identityClaims {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	return claims
}

// GetActorID retrieves the acting-user id from context.
func GetActorID(c *gin.Context) string {
	if v, ok := c.Get(ContextActorID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetAgencyID retrieves the agency id from context.
func GetAgencyID(c *gin.Context) string {
	if v, ok := c.Get(ContextAgencyID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
