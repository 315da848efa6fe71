package server

import (
	handler "spirit-market/services/market/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(listings handler.ListingServiceInterface, auctions handler.AuctionServiceInterface, lifecycle handler.LifecycleServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	marketHandler := handler.NewMarketHandler(listings, auctions, lifecycle)

	listingRoutes := router.Group("/listings")
	{
		listingRoutes.POST("", marketHandler.CreateListingHandler)
		listingRoutes.GET("", marketHandler.ListListingsHandler)
		listingRoutes.GET("/:listing_id", marketHandler.GetListingHandler)
		listingRoutes.PATCH("/:listing_id", marketHandler.UpdateListingHandler)
		listingRoutes.DELETE("/:listing_id", marketHandler.DeleteListingHandler)

		listingRoutes.POST("/:listing_id/bids", marketHandler.PlaceBidHandler)
		listingRoutes.GET("/:listing_id/bids", marketHandler.GetBidsHandler)
		listingRoutes.GET("/:listing_id/bids/winning", marketHandler.GetWinningBidHandler)

		listingRoutes.POST("/:listing_id/close", marketHandler.CloseListingHandler)
		listingRoutes.POST("/:listing_id/sold", marketHandler.MarkSoldHandler)

		listingRoutes.POST("/:listing_id/views", marketHandler.IncrementViewHandler)
		listingRoutes.POST("/:listing_id/saves", marketHandler.ToggleSaveHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/saves", marketHandler.GetSavedListingsHandler)
	}

	return router
}
