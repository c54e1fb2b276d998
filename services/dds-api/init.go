package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/apihelpers"
	"github.com/ddsurveys/dds-backend/pkg/db"
	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
	"github.com/ddsurveys/dds-backend/pkg/dds/providers"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/ddsurveys/dds-backend/pkg/flowlock"
	"github.com/ddsurveys/dds-backend/pkg/qualtrics"
	"github.com/ddsurveys/dds-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"

	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_PROJECT_DB_USERNAME = "PROJECT_DB_USERNAME"
	ENV_PROJECT_DB_PASSWORD = "PROJECT_DB_PASSWORD"

	ENV_RESEARCHER_JWT_SIGN_KEY  = "RESEARCHER_JWT_SIGN_KEY"
	ENV_SURVEY_PLATFORM_API_KEY  = "SURVEY_PLATFORM_API_KEY"
	ENV_FLOW_LOCK_REDIS_PASSWORD = "FLOW_LOCK_REDIS_PASSWORD"
)

type DDSApiConfig struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// Gin configs
	GinConfig struct {
		DebugMode    bool     `json:"debug_mode" yaml:"debug_mode"`
		AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
		Port         string   `json:"port" yaml:"port"`

		// Mutual TLS configs
		MTLS struct {
			Use              bool                        `json:"use" yaml:"use"`
			CertificatePaths apihelpers.CertificatePaths `json:"certificate_paths" yaml:"certificate_paths"`
		} `json:"mtls" yaml:"mtls"`
	} `json:"gin_config" yaml:"gin_config"`

	JWTConfig struct {
		SignKey       string        `json:"sign_key" yaml:"sign_key"`
		StateTokenTTL time.Duration `json:"state_token_ttl" yaml:"state_token_ttl"`
	} `json:"jwt_config" yaml:"jwt_config"`

	AllowedInstanceIDs []string `json:"allowed_instance_ids" yaml:"allowed_instance_ids"`

	// DB configs
	DBConfigs struct {
		ProjectDB db.DBConfigYaml `json:"project_db" yaml:"project_db"`
	} `json:"db_configs" yaml:"db_configs"`

	SurveyPlatform struct {
		Account string           `json:"account" yaml:"account"`
		API     qualtrics.Config `json:"api" yaml:"api"`
		// Keys the survey platform presents when triggering an injection
		TriggerAPIKeys []string `json:"trigger_api_keys" yaml:"trigger_api_keys"`
	} `json:"survey_platform" yaml:"survey_platform"`

	DataProviders struct {
		ClientSecrets map[string]string              `json:"client_secrets" yaml:"client_secrets"`
		APIs          map[string]providers.APIConfig `json:"apis" yaml:"apis"`
		// Replaces the built-in provider catalog if set
		CatalogFilePath string `json:"catalog_file_path" yaml:"catalog_file_path"`
	} `json:"data_providers" yaml:"data_providers"`

	Injection struct {
		Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`
		Timeout      time.Duration       `json:"timeout" yaml:"timeout"`
	} `json:"injection" yaml:"injection"`

	// Without redis, flow writes are only serialized within this process
	FlowLock struct {
		Redis *flowlock.RedisConfig `json:"redis" yaml:"redis"`
	} `json:"flow_lock" yaml:"flow_lock"`
}

var conf DDSApiConfig

var (
	projectDBService *projectDB.ProjectDBService
	providerCatalog  *catalog.Catalog
	oauthManager     *providers.OAuthManager
	injector         *orchestrator.Orchestrator
)

func init() {
	// Read config from file
	yamlFile, err := os.ReadFile(os.Getenv(ENV_CONFIG_FILE_PATH))
	if err != nil {
		panic(err)
	}

	err = yaml.UnmarshalStrict(yamlFile, &conf)
	if err != nil {
		panic(err)
	}

	// Init logger:
	utils.InitLogger(conf.Logging)

	// Override secrets from environment variables
	secretsOverride()

	if conf.JWTConfig.SignKey == "" {
		slog.Error("JWT sign key not set - configure RESEARCHER_JWT_SIGN_KEY env variable.")
		panic("JWT sign key not set")
	}

	// Init DBs
	initDBs()

	if !conf.GinConfig.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	initCatalog()
	initOrchestrator()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_PROJECT_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.ProjectDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_PROJECT_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.ProjectDB.Password = dbPassword
	}

	if signKey := os.Getenv(ENV_RESEARCHER_JWT_SIGN_KEY); signKey != "" {
		conf.JWTConfig.SignKey = signKey
	}

	if apiKey := os.Getenv(ENV_SURVEY_PLATFORM_API_KEY); apiKey != "" {
		conf.SurveyPlatform.TriggerAPIKeys = append(conf.SurveyPlatform.TriggerAPIKeys, apiKey)
	}

	if conf.SurveyPlatform.Account != "" {
		if token := os.Getenv(utils.GenerateSurveyPlatformTokenEnvVarName(conf.SurveyPlatform.Account)); token != "" {
			conf.SurveyPlatform.API.APIToken = token
		}
	}

	if conf.FlowLock.Redis != nil {
		if password := os.Getenv(ENV_FLOW_LOCK_REDIS_PASSWORD); password != "" {
			conf.FlowLock.Redis.Password = password
		}
	}

	// Override OAuth client secrets of the data providers
	if conf.DataProviders.ClientSecrets == nil {
		conf.DataProviders.ClientSecrets = map[string]string{}
	}
	for _, name := range []string{
		ddsTypes.PROVIDER_GITHUB,
		ddsTypes.PROVIDER_FITBIT,
		ddsTypes.PROVIDER_INSTAGRAM,
		ddsTypes.PROVIDER_GOOGLE_CONTACTS,
	} {
		if secret := os.Getenv(utils.GenerateProviderClientSecretEnvVarName(name)); secret != "" {
			conf.DataProviders.ClientSecrets[name] = secret
		}
	}
}

func initDBs() {
	var err error
	projectDBService, err = projectDB.NewProjectDBService(db.DBConfigFromYamlObj(conf.DBConfigs.ProjectDB, conf.AllowedInstanceIDs))
	if err != nil {
		slog.Error("Error connecting to Project DB", slog.String("error", err.Error()))
		panic(err)
	}
}

func initCatalog() {
	if conf.DataProviders.CatalogFilePath == "" {
		providerCatalog = catalog.Default()
		return
	}

	var err error
	providerCatalog, err = catalog.Load(conf.DataProviders.CatalogFilePath)
	if err != nil {
		slog.Error("Error loading provider catalog", slog.String("path", conf.DataProviders.CatalogFilePath), slog.String("error", err.Error()))
		panic(err)
	}
}

func initOrchestrator() {
	oauthManager = providers.NewOAuthManager(conf.DataProviders.ClientSecrets)

	var locker flowlock.Locker = flowlock.NewKeyedMutex()
	if conf.FlowLock.Redis != nil {
		client, err := flowlock.NewRedisClient(*conf.FlowLock.Redis)
		if err != nil {
			slog.Error("Error connecting to flow lock redis", slog.String("address", conf.FlowLock.Redis.Address), slog.String("error", err.Error()))
			panic(err)
		}
		locker = flowlock.NewRedisLocker(client, *conf.FlowLock.Redis)
	} else {
		slog.Warn("no redis configured for the flow lock, flow writes are serialized per process only")
	}

	injector = orchestrator.New(orchestrator.Dependencies{
		Store:     projectDBService,
		Platform:  qualtrics.NewClient(conf.SurveyPlatform.API),
		Providers: providers.DefaultRegistry(conf.DataProviders.APIs, projectDBService),
		OAuth:     oauthManager,
		Locker:    locker,
		Catalog:   providerCatalog,
		Metrics:   orchestrator.NewMetrics(prometheus.DefaultRegisterer),
	}, conf.Injection.Orchestrator)
}
