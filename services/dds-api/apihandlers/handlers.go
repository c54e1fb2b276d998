package apihandlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/gin-gonic/gin"
)

func HealthCheckHandle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProjectStore is the persistence the HTTP endpoints need.
type ProjectStore interface {
	CreateProject(instanceID string, project ddsTypes.Project) (ddsTypes.Project, error)
	GetProject(instanceID string, projectID string) (ddsTypes.Project, error)
	GetProjects(instanceID string) ([]ddsTypes.Project, error)
	UpdateProjectSurvey(instanceID string, projectID string, surveyID string) error

	CreateCustomVariable(instanceID string, cv ddsTypes.CustomVariable) (ddsTypes.CustomVariable, error)
	GetCustomVariableDefinitions(instanceID string, projectID string) ([]ddsTypes.CustomVariable, error)
	DeleteCustomVariable(instanceID string, projectID string, variableID string) error

	SaveDataConnection(instanceID string, conn ddsTypes.DataConnection) (ddsTypes.DataConnection, error)
	GetDataConnection(instanceID string, projectID string, provider string) (ddsTypes.DataConnection, error)
	GetDataConnections(instanceID string, projectID string) ([]ddsTypes.DataConnection, error)
	DeleteDataConnection(instanceID string, projectID string, provider string) error

	SaveDataProviderAccess(instanceID string, access ddsTypes.DataProviderAccess) error
	MarkStateTokenUsed(instanceID string, tokenID string, expiresAt time.Time) error
}

// ConsentFlow runs the OAuth consent round trip of respondents.
type ConsentFlow interface {
	AuthCodeURL(conn ddsTypes.DataConnection, state string) (string, error)
	Exchange(ctx context.Context, conn ddsTypes.DataConnection, respondentID string, code string) (ddsTypes.DataProviderAccess, error)
}

type Injector interface {
	Run(ctx context.Context, instanceID string, projectID string, respondentID string) (orchestrator.Outcome, error)
}

type HttpEndpoints struct {
	store              ProjectStore
	catalog            *catalog.Catalog
	consent            ConsentFlow
	injector           Injector
	tokenSignKey       string
	stateTokenTTL      time.Duration
	allowedInstanceIDs []string
	surveyPlatformKeys []string
	injectionTimeout   time.Duration
}

type HttpEndpointsConfig struct {
	TokenSignKey       string
	StateTokenTTL      time.Duration
	AllowedInstanceIDs []string
	SurveyPlatformKeys []string
	InjectionTimeout   time.Duration
}

func NewHTTPHandler(
	store ProjectStore,
	catalog *catalog.Catalog,
	consent ConsentFlow,
	injector Injector,
	conf HttpEndpointsConfig,
) *HttpEndpoints {
	if conf.StateTokenTTL <= 0 {
		conf.StateTokenTTL = 15 * time.Minute
	}
	if conf.InjectionTimeout <= 0 {
		conf.InjectionTimeout = 60 * time.Second
	}
	return &HttpEndpoints{
		store:              store,
		catalog:            catalog,
		consent:            consent,
		injector:           injector,
		tokenSignKey:       conf.TokenSignKey,
		stateTokenTTL:      conf.StateTokenTTL,
		allowedInstanceIDs: conf.AllowedInstanceIDs,
		surveyPlatformKeys: conf.SurveyPlatformKeys,
		injectionTimeout:   conf.InjectionTimeout,
	}
}
