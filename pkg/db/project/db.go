package project

import (
	"context"
	"log/slog"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/db"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collection names
const (
	COLLECTION_NAME_PROJECTS             = "projects"
	COLLECTION_NAME_CUSTOM_VARIABLES     = "customVariables"
	COLLECTION_NAME_DATA_CONNECTIONS     = "dataConnections"
	COLLECTION_NAME_DATA_PROVIDER_ACCESS = "dataProviderAccess"
	COLLECTION_NAME_INJECTION_MARKERS    = "injectionMarkers"
	COLLECTION_NAME_USED_STATE_TOKENS    = "usedStateTokens"
)

type ProjectDBService struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
	InstanceIDs     []string
}

func NewProjectDBService(configs db.DBConfig) (*ProjectDBService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer cancel()

	dbClient, err := mongo.Connect(ctx,
		options.Client().ApplyURI(configs.URI),
		options.Client().SetMaxConnIdleTime(time.Duration(configs.IdleConnTimeout)*time.Second),
		options.Client().SetMaxPoolSize(configs.MaxPoolSize),
		options.Client().SetAppName(appNameOrDefault(configs.AppName)),
	)

	if err != nil {
		return nil, err
	}

	ctx, conCancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	err = dbClient.Ping(ctx, nil)
	defer conCancel()

	if err != nil {
		return nil, err
	}

	projectDBSc := &ProjectDBService{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
		InstanceIDs:     configs.InstanceIDs,
	}

	if configs.RunIndexCreation {
		projectDBSc.ensureIndexes()
	}

	return projectDBSc, nil
}

func appNameOrDefault(appName string) string {
	if appName == "" {
		return "dds-backend"
	}
	return appName
}

func (dbService *ProjectDBService) getDBName(instanceID string) string {
	return dbService.DBNamePrefix + instanceID + "_projectDB"
}

func (dbService *ProjectDBService) collectionProjects(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_PROJECTS)
}

func (dbService *ProjectDBService) collectionCustomVariables(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_CUSTOM_VARIABLES)
}

func (dbService *ProjectDBService) collectionDataConnections(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_DATA_CONNECTIONS)
}

func (dbService *ProjectDBService) collectionDataProviderAccess(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_DATA_PROVIDER_ACCESS)
}

func (dbService *ProjectDBService) collectionInjectionMarkers(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_INJECTION_MARKERS)
}

func (dbService *ProjectDBService) collectionUsedStateTokens(instanceID string) *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName(instanceID)).Collection(COLLECTION_NAME_USED_STATE_TOKENS)
}

func (dbService *ProjectDBService) getContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(dbService.timeout)*time.Second)
}

func (dbService *ProjectDBService) ensureIndexes() {
	slog.Debug("Ensuring indexes for project DB")
	for _, instanceID := range dbService.InstanceIDs {
		dbService.CreateDefaultIndexesForCustomVariablesCollection(instanceID)
		dbService.CreateDefaultIndexesForDataConnectionsCollection(instanceID)
		dbService.CreateDefaultIndexesForDataProviderAccessCollection(instanceID)
		dbService.CreateDefaultIndexesForInjectionMarkersCollection(instanceID)
		dbService.CreateDefaultIndexesForUsedStateTokensCollection(instanceID)
	}
}

// Close disconnects the client.
func (dbService *ProjectDBService) Close() {
	ctx, cancel := dbService.getContext()
	defer cancel()
	if err := dbService.DBClient.Disconnect(ctx); err != nil {
		slog.Error("Error disconnecting project DB", slog.String("error", err.Error()))
	}
}
