package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sruthreads/storefront_backend/models"
	"github.com/sruthreads/storefront_backend/utils"
)

// StoreMiddleware resolves the tenant from the X-Client-Id header and puts
// the store id on the request context. Every storefront route runs behind
// it; a request that cannot be mapped to a store never reaches a handler.
func StoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.Request.Header.Get("X-Client-Id")
		if identifier == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing client id"})
			c.Abort()
			return
		}

		store, err := models.GetStoreByClientIdentifier(c.Request.Context(), identifier)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown client"})
			c.Abort()
			return
		}

		ctx := utils.SetStoreIdInContext(c.Request.Context(), store.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("store", store)
		c.Next()
	}
}

// StoreFromContext returns the store resolved by StoreMiddleware.
func StoreFromContext(c *gin.Context) *models.Store {
	raw, ok := c.Get("store")
	if !ok {
		return nil
	}
	store, _ := raw.(*models.Store)
	return store
}
