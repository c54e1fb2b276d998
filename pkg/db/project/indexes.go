package project

import (
	"fmt"
	"log/slog"

	"github.com/ddsurveys/dds-backend/pkg/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var indexesForCustomVariablesCollection = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "projectID", Value: 1},
			{Key: "provider", Value: 1},
			{Key: "category", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("projectID_1_provider_1_category_1"),
	},
}

var indexesForDataConnectionsCollection = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "projectID", Value: 1},
			{Key: "provider", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("projectID_1_provider_1"),
	},
}

var indexesForDataProviderAccessCollection = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "respondentID", Value: 1},
			{Key: "projectID", Value: 1},
			{Key: "provider", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("respondentID_1_projectID_1_provider_1"),
	},
	{
		Keys: bson.D{
			{Key: "projectID", Value: 1},
			{Key: "provider", Value: 1},
		},
		Options: options.Index().SetName("projectID_1_provider_1"),
	},
}

var indexesForInjectionMarkersCollection = []mongo.IndexModel{
	{
		Keys: bson.D{
			{Key: "respondentID", Value: 1},
			{Key: "projectID", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("respondentID_1_projectID_1"),
	},
}

func (dbService *ProjectDBService) createIndexes(instanceID string, collection *mongo.Collection, indexes []mongo.IndexModel) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		slog.Error("Error creating index", slog.String("collection", collection.Name()), slog.String("error", err.Error()), slog.String("instanceID", instanceID))
	}
}

func (dbService *ProjectDBService) CreateDefaultIndexesForCustomVariablesCollection(instanceID string) {
	dbService.createIndexes(instanceID, dbService.collectionCustomVariables(instanceID), indexesForCustomVariablesCollection)
}

func (dbService *ProjectDBService) CreateDefaultIndexesForDataConnectionsCollection(instanceID string) {
	dbService.createIndexes(instanceID, dbService.collectionDataConnections(instanceID), indexesForDataConnectionsCollection)
}

func (dbService *ProjectDBService) CreateDefaultIndexesForDataProviderAccessCollection(instanceID string) {
	dbService.createIndexes(instanceID, dbService.collectionDataProviderAccess(instanceID), indexesForDataProviderAccessCollection)
}

func (dbService *ProjectDBService) CreateDefaultIndexesForInjectionMarkersCollection(instanceID string) {
	dbService.createIndexes(instanceID, dbService.collectionInjectionMarkers(instanceID), indexesForInjectionMarkersCollection)
}

// DropDefaultIndexes drops the named default indexes of all collections of an instance.
func (dbService *ProjectDBService) DropDefaultIndexes(instanceID string) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	groups := []struct {
		collection *mongo.Collection
		indexes    []mongo.IndexModel
	}{
		{dbService.collectionCustomVariables(instanceID), indexesForCustomVariablesCollection},
		{dbService.collectionDataConnections(instanceID), indexesForDataConnectionsCollection},
		{dbService.collectionDataProviderAccess(instanceID), indexesForDataProviderAccessCollection},
		{dbService.collectionInjectionMarkers(instanceID), indexesForInjectionMarkersCollection},
		{dbService.collectionUsedStateTokens(instanceID), indexesForUsedStateTokensCollection},
	}
	for _, g := range groups {
		for _, index := range g.indexes {
			if index.Options == nil || index.Options.Name == nil {
				slog.Error("Index name is nil", slog.String("collection", g.collection.Name()), slog.String("index", fmt.Sprintf("%+v", index)))
				continue
			}
			indexName := *index.Options.Name
			if _, err := g.collection.Indexes().DropOne(ctx, indexName); err != nil {
				slog.Error("Error dropping index", slog.String("collection", g.collection.Name()), slog.String("indexName", indexName), slog.String("error", err.Error()))
			}
		}
	}
}

func (dbService *ProjectDBService) collectionsWithIndexes(instanceID string) []*mongo.Collection {
	return []*mongo.Collection{
		dbService.collectionCustomVariables(instanceID),
		dbService.collectionDataConnections(instanceID),
		dbService.collectionDataProviderAccess(instanceID),
		dbService.collectionInjectionMarkers(instanceID),
		dbService.collectionUsedStateTokens(instanceID),
	}
}

// DropAllIndexes drops every index except _id of all collections of an instance.
func (dbService *ProjectDBService) DropAllIndexes(instanceID string) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	for _, collection := range dbService.collectionsWithIndexes(instanceID) {
		if _, err := collection.Indexes().DropAll(ctx); err != nil {
			slog.Error("Error dropping all indexes", slog.String("collection", collection.Name()), slog.String("error", err.Error()), slog.String("instanceID", instanceID))
		}
	}
}

// CreateDefaultIndexes creates the default indexes for all configured instances.
func (dbService *ProjectDBService) CreateDefaultIndexes() {
	dbService.ensureIndexes()
}

// GetIndexes lists the indexes per collection name of an instance.
func (dbService *ProjectDBService) GetIndexes(instanceID string) (map[string][]db.IndexInfo, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	indexes := map[string][]db.IndexInfo{}
	for _, collection := range dbService.collectionsWithIndexes(instanceID) {
		list, err := db.ListCollectionIndexes(ctx, collection)
		if err != nil {
			return nil, err
		}
		indexes[collection.Name()] = list
	}
	return indexes, nil
}
