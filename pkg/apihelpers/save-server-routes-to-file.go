package apihelpers

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/gin-gonic/gin"
)

// WriteRoutesToFile dumps the registered routes, one "METHOD\tpath" per line.
func WriteRoutesToFile(router *gin.Engine, filename string) {
	file, err := os.Create(filename)
	if err != nil {
		slog.Error("could not create routes file", slog.String("filename", filename), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	routes := router.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	for _, route := range routes {
		if _, err := fmt.Fprintf(file, "%s\t%s\n", route.Method, route.Path); err != nil {
			slog.Error("could not write routes file", slog.String("filename", filename), slog.String("error", err.Error()))
			return
		}
	}
}
