package project

import (
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (dbService *ProjectDBService) CreateProject(instanceID string, project ddsTypes.Project) (ddsTypes.Project, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	now := time.Now().UTC()
	project.ID = primitive.NilObjectID
	project.CreatedAt = now
	project.UpdatedAt = now

	res, err := dbService.collectionProjects(instanceID).InsertOne(ctx, project)
	if err != nil {
		return project, err
	}
	project.ID = res.InsertedID.(primitive.ObjectID)
	return project, nil
}

func (dbService *ProjectDBService) GetProject(instanceID string, projectID string) (project ddsTypes.Project, err error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_id, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return project, err
	}
	filter := bson.M{"_id": _id}
	err = dbService.collectionProjects(instanceID).FindOne(ctx, filter).Decode(&project)
	return project, err
}

func (dbService *ProjectDBService) GetProjects(instanceID string) (projects []ddsTypes.Project, err error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	cursor, err := dbService.collectionProjects(instanceID).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	projects = []ddsTypes.Project{}
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateProjectSurvey binds the project to a survey of the survey platform.
func (dbService *ProjectDBService) UpdateProjectSurvey(instanceID string, projectID string, surveyID string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_id, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": _id}
	update := bson.M{"$set": bson.M{"surveyID": surveyID, "updatedAt": time.Now().UTC()}}
	_, err = dbService.collectionProjects(instanceID).UpdateOne(ctx, filter, update)
	return err
}
