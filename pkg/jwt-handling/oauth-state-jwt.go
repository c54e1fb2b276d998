package jwthandling

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const OAUTH_STATE_AUDIENCE = "dds-oauth-callback"

var ErrStateProviderMismatch = errors.New("state was issued for another provider")

// OAuthStateClaims binds an OAuth consent round trip to the respondent, project and provider
// it was started for. The respondent ID is the subject.
type OAuthStateClaims struct {
	InstanceID string `json:"instance_id"`
	ProjectID  string `json:"project_id"`
	Provider   string `json:"provider"`
	jwt.RegisteredClaims
}

func (c OAuthStateClaims) RespondentID() string {
	return c.Subject
}

func GenerateOAuthStateToken(expiresIn time.Duration, instanceID string, projectID string, provider string, respondentID string, secretKey string) (tokenString string, err error) {
	now := time.Now()
	claims := OAuthStateClaims{
		InstanceID: instanceID,
		ProjectID:  projectID,
		Provider:   provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   respondentID,
			Audience:  jwt.ClaimStrings{OAUTH_STATE_AUDIENCE},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err = token.SignedString([]byte(secretKey))
	return
}

// ValidateOAuthStateToken parses a state token and checks it was issued for provider.
func ValidateOAuthStateToken(tokenString string, provider string, secretKey string) (*OAuthStateClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&OAuthStateClaims{},
		hmacKeyFunc(secretKey),
		jwt.WithAudience(OAUTH_STATE_AUDIENCE),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*OAuthStateClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid state token")
	}
	if claims.Provider != provider {
		return nil, ErrStateProviderMismatch
	}
	return claims, nil
}
