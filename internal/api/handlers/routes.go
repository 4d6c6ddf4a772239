package handlers

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.Engine, search *SearchHandler, health *HealthHandler) {
	if health != nil {
		router.GET("/health", health.HandleHealth)
	}

	api := router.Group("/api")
	{
		api.GET("/search-suggestion", search.HandleSearchSuggestions)
		api.DELETE("/search-history", search.HandleDeleteHistory)
		api.POST("/search", search.HandleSearch)
		api.GET("/compare", search.HandleCompare)
		api.GET("/disease/:id", search.HandleDisease)
	}
}
