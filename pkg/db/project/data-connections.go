package project

import (
	"log/slog"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveDataConnection attaches a provider to a project, or replaces the existing attachment.
func (dbService *ProjectDBService) SaveDataConnection(instanceID string, conn ddsTypes.DataConnection) (ddsTypes.DataConnection, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"projectID": conn.ProjectID, "provider": conn.Provider}
	update := bson.M{
		"$set": bson.M{
			"clientID":     conn.ClientID,
			"scopes":       conn.Scopes,
			"redirectURL":  conn.RedirectURL,
			"accessToken":  conn.AccessToken,
			"refreshToken": conn.RefreshToken,
			"tokenExpiry":  conn.TokenExpiry,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved ddsTypes.DataConnection
	err := dbService.collectionDataConnections(instanceID).FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved)
	return saved, err
}

func (dbService *ProjectDBService) GetDataConnection(instanceID string, projectID string, provider string) (conn ddsTypes.DataConnection, err error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"projectID": projectID, "provider": provider}
	err = dbService.collectionDataConnections(instanceID).FindOne(ctx, filter).Decode(&conn)
	return conn, err
}

func (dbService *ProjectDBService) GetDataConnections(instanceID string, projectID string) (conns []ddsTypes.DataConnection, err error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"projectID": projectID}
	cursor, err := dbService.collectionDataConnections(instanceID).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conns = []ddsTypes.DataConnection{}
	if err = cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// DeleteDataConnection detaches a provider from a project and drops the respondent grants
// given for it.
func (dbService *ProjectDBService) DeleteDataConnection(instanceID string, projectID string, provider string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"projectID": projectID, "provider": provider}
	res, err := dbService.collectionDataConnections(instanceID).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount < 1 {
		return mongo.ErrNoDocuments
	}

	accessRes, err := dbService.collectionDataProviderAccess(instanceID).DeleteMany(ctx, filter)
	if err != nil {
		slog.Error("Error deleting data provider access of detached provider", slog.String("projectID", projectID), slog.String("provider", provider), slog.String("error", err.Error()))
		return err
	}
	slog.Debug("data connection deleted", slog.String("projectID", projectID), slog.String("provider", provider), slog.Int64("revokedAccesses", accessRes.DeletedCount))
	return nil
}
