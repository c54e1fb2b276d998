package types

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DataProviderType string

const (
	DATA_PROVIDER_TYPE_GENERIC  DataProviderType = "generic"
	DATA_PROVIDER_TYPE_OAUTH    DataProviderType = "oauth"
	DATA_PROVIDER_TYPE_FRONTEND DataProviderType = "frontend"
)

// Stable provider names, used as external identity and in variable names.
const (
	PROVIDER_FITBIT          = "fitbit"
	PROVIDER_INSTAGRAM       = "instagram"
	PROVIDER_GITHUB          = "github"
	PROVIDER_GOOGLE_CONTACTS = "googlecontacts"
	PROVIDER_DDS             = "dds"
)

type VariableType string

const (
	VARIABLE_TYPE_DATE   VariableType = "Date"
	VARIABLE_TYPE_SCALE  VariableType = "Scale"
	VARIABLE_TYPE_STRING VariableType = "String"
)

func (vt VariableType) IsValid() bool {
	switch vt {
	case VARIABLE_TYPE_DATE, VARIABLE_TYPE_SCALE, VARIABLE_TYPE_STRING:
		return true
	}
	return false
}

const VARIABLE_NAME_PREFIX = "dds."

// VariableName returns the embedded data field name for a provider category: dds.<provider>.<category>
func VariableName(provider string, category string) string {
	return VARIABLE_NAME_PREFIX + provider + "." + category
}

// SplitVariableName is the inverse of VariableName. Categories may contain dots themselves.
func SplitVariableName(name string) (provider string, category string, ok bool) {
	rest, found := strings.CutPrefix(name, VARIABLE_NAME_PREFIX)
	if !found {
		return "", "", false
	}
	provider, category, found = strings.Cut(rest, ".")
	if !found || provider == "" || category == "" {
		return "", "", false
	}
	return provider, category, true
}

type DataProvider struct {
	Name  string           `yaml:"name" json:"name"`
	Type  DataProviderType `yaml:"type" json:"type"`
	Label string           `yaml:"label" json:"label"`
}

type Project struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	SurveyID  string             `bson:"surveyID" json:"surveyID"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DataConnection attaches a provider to a project. It carries the OAuth app the respondents
// consent to, and optional project level tokens.
type DataConnection struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ProjectID   string             `bson:"projectID" json:"projectID"`
	Provider    string             `bson:"provider" json:"provider"`
	ClientID    string             `bson:"clientID" json:"clientID"`
	Scopes      []string           `bson:"scopes" json:"scopes"`
	RedirectURL string             `bson:"redirectURL" json:"redirectURL"`

	AccessToken  string    `bson:"accessToken,omitempty" json:"-"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"-"`
	TokenExpiry  time.Time `bson:"tokenExpiry,omitempty" json:"tokenExpiry,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DataProviderAccess is the OAuth grant of one respondent for one provider within a project.
type DataProviderAccess struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RespondentID string             `bson:"respondentID" json:"respondentID"`
	ProjectID    string             `bson:"projectID" json:"projectID"`
	Provider     string             `bson:"provider" json:"provider"`

	AccessToken  string    `bson:"accessToken" json:"-"`
	RefreshToken string    `bson:"refreshToken" json:"-"`
	TokenType    string    `bson:"tokenType" json:"tokenType"`
	Scopes       []string  `bson:"scopes" json:"scopes"`
	Expiry       time.Time `bson:"expiry" json:"expiry"`

	GrantedAt   time.Time `bson:"grantedAt" json:"grantedAt"`
	RefreshedAt time.Time `bson:"refreshedAt,omitempty" json:"refreshedAt,omitempty"`
}

// IsExpired reports whether the access token is expired at now. A zero expiry never expires.
func (a DataProviderAccess) IsExpired(now time.Time) bool {
	return !a.Expiry.IsZero() && !now.Before(a.Expiry)
}

// Credentials is what provider adapters need to call an API on behalf of a respondent.
type Credentials struct {
	InstanceID   string
	RespondentID string
	ProjectID    string
	AccessToken  string
	TokenType    string
}

func (a DataProviderAccess) Credentials(instanceID string) Credentials {
	return Credentials{
		InstanceID:   instanceID,
		RespondentID: a.RespondentID,
		ProjectID:    a.ProjectID,
		AccessToken:  a.AccessToken,
		TokenType:    a.TokenType,
	}
}

// CustomVariable is a researcher authored extraction rule of a project.
type CustomVariable struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ProjectID    string             `bson:"projectID" json:"projectID"`
	Provider     string             `bson:"provider" json:"provider"`
	Category     string             `bson:"category" json:"category"`
	VariableType VariableType       `bson:"variableType" json:"variableType"`
	Description  string             `bson:"description" json:"description"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// Field is the embedded data field name the variable is written to.
func (cv CustomVariable) Field() string {
	return VariableName(cv.Provider, cv.Category)
}

// Label is the embedded data description; the field name when no description was given.
func (cv CustomVariable) Label() string {
	if cv.Description == "" {
		return cv.Field()
	}
	return cv.Description
}

// InjectionMarker records that variables were written to the survey flow for a respondent.
type InjectionMarker struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RespondentID  string             `bson:"respondentID" json:"respondentID"`
	ProjectID     string             `bson:"projectID" json:"projectID"`
	RunID         string             `bson:"runID" json:"runID"`
	VariableCount int                `bson:"variableCount" json:"variableCount"`
	CompletedAt   time.Time          `bson:"completedAt" json:"completedAt"`
}

// PendingInjection is a (respondent, project) pair with at least one grant and no marker.
type PendingInjection struct {
	RespondentID string `bson:"respondentID" json:"respondentID"`
	ProjectID    string `bson:"projectID" json:"projectID"`
}
