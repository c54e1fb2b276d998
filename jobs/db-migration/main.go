package main

import (
	"log/slog"
	"time"
)

func main() {
	start := time.Now()

	dropIndexes()

	createIndexes()

	getIndexes()

	slog.Info("DB migration job completed", slog.String("duration", time.Since(start).String()))
}

func dropIndexes() {
	for _, instanceID := range conf.InstanceIDs {
		switch conf.TaskConfigs.DropIndexes {
		case DropIndexesModeAll:
			slog.Info("Dropping all indexes", slog.String("instanceID", instanceID))
			projectDBService.DropAllIndexes(instanceID)
		case DropIndexesModeDefaults:
			slog.Info("Dropping default indexes", slog.String("instanceID", instanceID))
			projectDBService.DropDefaultIndexes(instanceID)
		}
	}
}

func createIndexes() {
	if conf.TaskConfigs.CreateIndexes {
		projectDBService.CreateDefaultIndexes()
	}
}

func getIndexes() {
	if !conf.TaskConfigs.GetIndexes {
		return
	}

	for _, instanceID := range conf.InstanceIDs {
		indexes, err := projectDBService.GetIndexes(instanceID)
		if err != nil {
			slog.Error("Error listing indexes", slog.String("instanceID", instanceID), slog.String("error", err.Error()))
			continue
		}
		for collection, list := range indexes {
			for _, index := range list {
				slog.Info("Index",
					slog.String("instanceID", instanceID),
					slog.String("collection", collection),
					slog.String("name", index.Name),
					slog.Any("keys", index.Keys),
					slog.Bool("unique", index.Unique),
				)
			}
		}
	}
}
