package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/db"
	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	"github.com/ddsurveys/dds-backend/pkg/dds/orchestrator"
	"github.com/ddsurveys/dds-backend/pkg/dds/providers"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/ddsurveys/dds-backend/pkg/flowlock"
	"github.com/ddsurveys/dds-backend/pkg/qualtrics"
	"github.com/ddsurveys/dds-backend/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"

	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_PROJECT_DB_USERNAME      = "PROJECT_DB_USERNAME"
	ENV_PROJECT_DB_PASSWORD      = "PROJECT_DB_PASSWORD"
	ENV_FLOW_LOCK_REDIS_PASSWORD = "FLOW_LOCK_REDIS_PASSWORD"
)

const (
	defaultWorkerCount = 4
	defaultRunTimeout  = 60 * time.Second
)

type config struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// DB configs
	DBConfigs struct {
		ProjectDB db.DBConfigYaml `json:"project_db" yaml:"project_db"`
	} `json:"db_configs" yaml:"db_configs"`

	InstanceIDs []string `json:"instance_ids" yaml:"instance_ids"`

	SurveyPlatform struct {
		Account string           `json:"account" yaml:"account"`
		API     qualtrics.Config `json:"api" yaml:"api"`
	} `json:"survey_platform" yaml:"survey_platform"`

	DataProviders struct {
		ClientSecrets   map[string]string              `json:"client_secrets" yaml:"client_secrets"`
		APIs            map[string]providers.APIConfig `json:"apis" yaml:"apis"`
		CatalogFilePath string                         `json:"catalog_file_path" yaml:"catalog_file_path"`
	} `json:"data_providers" yaml:"data_providers"`

	Injection struct {
		Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`
		// Go duration string, e.g. "90s"
		RunTimeout string `json:"run_timeout" yaml:"run_timeout"`
		// Number of respondents handled in parallel
		Workers int `json:"workers" yaml:"workers"`
		// Max pending respondents picked up per instance and job run, 0 for all
		BatchLimit int64 `json:"batch_limit" yaml:"batch_limit"`
	} `json:"injection" yaml:"injection"`

	FlowLock struct {
		Redis *flowlock.RedisConfig `json:"redis" yaml:"redis"`
	} `json:"flow_lock" yaml:"flow_lock"`
}

var conf config

var (
	projectDBService *projectDB.ProjectDBService
	injector         *orchestrator.Orchestrator
	runTimeout       time.Duration
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

	runTimeout = defaultRunTimeout
	if conf.Injection.RunTimeout != "" {
		runTimeout, err = utils.ParseDurationString(conf.Injection.RunTimeout)
		if err != nil {
			slog.Error("Error parsing run timeout", slog.String("error", err.Error()))
			panic(err)
		}
	}
	if conf.Injection.Workers <= 0 {
		conf.Injection.Workers = defaultWorkerCount
	}

	// init db
	initDBs()

	initOrchestrator()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_PROJECT_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.ProjectDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_PROJECT_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.ProjectDB.Password = dbPassword
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
	projectDBService, err = projectDB.NewProjectDBService(db.DBConfigFromYamlObj(conf.DBConfigs.ProjectDB, conf.InstanceIDs))
	if err != nil {
		slog.Error("Error connecting to Project DB", slog.String("error", err.Error()))
		panic(err)
	}
}

func initOrchestrator() {
	providerCatalog := catalog.Default()
	if conf.DataProviders.CatalogFilePath != "" {
		var err error
		providerCatalog, err = catalog.Load(conf.DataProviders.CatalogFilePath)
		if err != nil {
			slog.Error("Error loading provider catalog", slog.String("path", conf.DataProviders.CatalogFilePath), slog.String("error", err.Error()))
			panic(err)
		}
	}

	var locker flowlock.Locker = flowlock.NewKeyedMutex()
	if conf.FlowLock.Redis != nil {
		client, err := flowlock.NewRedisClient(*conf.FlowLock.Redis)
		if err != nil {
			slog.Error("Error connecting to flow lock redis", slog.String("address", conf.FlowLock.Redis.Address), slog.String("error", err.Error()))
			panic(err)
		}
		locker = flowlock.NewRedisLocker(client, *conf.FlowLock.Redis)
	} else {
		slog.Warn("no redis configured for the flow lock, writes from the api service are not serialized with this job")
	}

	injector = orchestrator.New(orchestrator.Dependencies{
		Store:     projectDBService,
		Platform:  qualtrics.NewClient(conf.SurveyPlatform.API),
		Providers: providers.DefaultRegistry(conf.DataProviders.APIs, projectDBService),
		OAuth:     providers.NewOAuthManager(conf.DataProviders.ClientSecrets),
		Locker:    locker,
		Catalog:   providerCatalog,
		Metrics:   orchestrator.NewMetrics(prometheus.NewRegistry()),
	}, conf.Injection.Orchestrator)
}
