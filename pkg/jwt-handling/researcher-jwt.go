package jwthandling

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Information a researcher token encodes
type ResearcherClaims struct {
	InstanceID string            `json:"instance_id,omitempty"`
	IsAdmin    bool              `json:"is_admin,omitempty"`
	ProjectIDs []string          `json:"project_ids,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
	jwt.RegisteredClaims
}

// CanAccessProject reports whether the researcher may manage the project. Admins may manage all.
func (c ResearcherClaims) CanAccessProject(projectID string) bool {
	if c.IsAdmin {
		return true
	}
	for _, id := range c.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

func GenerateNewResearcherToken(expiresIn time.Duration, id string, instanceID string, isAdmin bool, projectIDs []string, payload map[string]string, secretKey string) (tokenString string, err error) {
	claims := ResearcherClaims{
		instanceID,
		isAdmin,
		projectIDs,
		payload,
		jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   id,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err = token.SignedString([]byte(secretKey))
	return
}

func ValidateResearcherToken(tokenString string, secretKey string) (claims *ResearcherClaims, valid bool, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResearcherClaims{}, hmacKeyFunc(secretKey))
	if token == nil {
		return
	}
	claims, valid = token.Claims.(*ResearcherClaims)
	valid = valid && token.Valid
	return
}

func hmacKeyFunc(secretKey string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}
}
