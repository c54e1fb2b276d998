package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ddsurveys/dds-backend/pkg/db"
	"github.com/ddsurveys/dds-backend/pkg/utils"
	"gopkg.in/yaml.v2"

	projectDB "github.com/ddsurveys/dds-backend/pkg/db/project"
)

// Environment variables
const (
	ENV_CONFIG_FILE_PATH = "CONFIG_FILE_PATH"

	// Variables to override "secrets" in the config file
	ENV_PROJECT_DB_USERNAME = "PROJECT_DB_USERNAME"
	ENV_PROJECT_DB_PASSWORD = "PROJECT_DB_PASSWORD"
)

type config struct {
	// Logging configs
	Logging utils.LoggerConfig `json:"logging" yaml:"logging"`

	// DB configs
	DBConfigs struct {
		ProjectDB db.DBConfigYaml `json:"project_db" yaml:"project_db"`
	} `json:"db_configs" yaml:"db_configs"`

	InstanceIDs []string `json:"instance_ids" yaml:"instance_ids"`

	// Task configurations
	TaskConfigs TaskConfigs `json:"task_configs" yaml:"task_configs"`
}

type TaskConfigs struct {
	DropIndexes   DropIndexesMode `json:"drop_indexes" yaml:"drop_indexes"`
	CreateIndexes bool            `json:"create_indexes" yaml:"create_indexes"`
	GetIndexes    bool            `json:"get_indexes" yaml:"get_indexes"`
}

type DropIndexesMode string

const (
	DropIndexesModeAll      DropIndexesMode = "all"
	DropIndexesModeDefaults DropIndexesMode = "defaults"
	DropIndexesModeNone     DropIndexesMode = "none"
)

func (mode DropIndexesMode) IsValid() bool {
	switch mode {
	case DropIndexesModeAll, DropIndexesModeDefaults, DropIndexesModeNone:
		return true
	default:
		return false
	}
}

func validateConfig() {
	if conf.TaskConfigs.DropIndexes == "" {
		conf.TaskConfigs.DropIndexes = DropIndexesModeNone
	}
	if !conf.TaskConfigs.DropIndexes.IsValid() {
		panic(fmt.Sprintf("invalid drop indexes mode for task_configs.drop_indexes: %q. Use one of: %v", conf.TaskConfigs.DropIndexes, []DropIndexesMode{DropIndexesModeAll, DropIndexesModeDefaults, DropIndexesModeNone}))
	}
}

var conf config

var projectDBService *projectDB.ProjectDBService

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

	validateConfig()

	// Init logger:
	utils.InitLogger(conf.Logging)

	// Override secrets from environment variables
	secretsOverride()

	// init db
	initDBs()
}

func secretsOverride() {
	if dbUsername := os.Getenv(ENV_PROJECT_DB_USERNAME); dbUsername != "" {
		conf.DBConfigs.ProjectDB.Username = dbUsername
	}

	if dbPassword := os.Getenv(ENV_PROJECT_DB_PASSWORD); dbPassword != "" {
		conf.DBConfigs.ProjectDB.Password = dbPassword
	}
}

func initDBs() {
	// index creation is a task of this job, not a side effect of connecting
	dbConf := db.DBConfigFromYamlObj(conf.DBConfigs.ProjectDB, conf.InstanceIDs)
	dbConf.RunIndexCreation = false

	var err error
	projectDBService, err = projectDB.NewProjectDBService(dbConf)
	if err != nil {
		slog.Error("Error connecting to Project DB", slog.String("error", err.Error()))
		panic(err)
	}
}
