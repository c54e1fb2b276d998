package project

import (
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (dbService *ProjectDBService) IsInjectionComplete(instanceID string, respondentID string, projectID string) (bool, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{"respondentID": respondentID, "projectID": projectID}
	count, err := dbService.collectionInjectionMarkers(instanceID).CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecordInjectionComplete stores the completion marker. Recording an existing marker is not
// an error; the first marker is kept.
func (dbService *ProjectDBService) RecordInjectionComplete(instanceID string, marker ddsTypes.InjectionMarker) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	marker.ID = primitive.NilObjectID
	if marker.CompletedAt.IsZero() {
		marker.CompletedAt = time.Now().UTC()
	}
	_, err := dbService.collectionInjectionMarkers(instanceID).InsertOne(ctx, marker)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindRespondentsPendingInjection lists (respondent, project) pairs with at least one access
// grant and no completion marker. limit <= 0 means no limit.
func (dbService *ProjectDBService) FindRespondentsPendingInjection(instanceID string, limit int64) ([]ddsTypes.PendingInjection, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "respondentID", Value: "$respondentID"},
				{Key: "projectID", Value: "$projectID"},
			}},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: COLLECTION_NAME_INJECTION_MARKERS},
			{Key: "let", Value: bson.D{
				{Key: "r", Value: "$_id.respondentID"},
				{Key: "p", Value: "$_id.projectID"},
			}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$respondentID", "$$r"}}},
					bson.D{{Key: "$eq", Value: bson.A{"$projectID", "$$p"}}},
				}}}}}}},
				bson.D{{Key: "$limit", Value: 1}},
			}},
			{Key: "as", Value: "markers"},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "markers", Value: bson.D{{Key: "$size", Value: 0}}}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "respondentID", Value: "$_id.respondentID"},
			{Key: "projectID", Value: "$_id.projectID"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "projectID", Value: 1}, {Key: "respondentID", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := dbService.collectionDataProviderAccess(instanceID).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	pending := []ddsTypes.PendingInjection{}
	if err = cursor.All(ctx, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}
