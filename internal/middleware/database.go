package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DatabaseMiddleware hands every request its own context-bound database handle.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db.WithContext(c.Request.Context()))
		c.Next()
	}
}

func GetDB(c *gin.Context) (*gorm.DB, bool) {
	db, exists := c.Get("db")
	if !exists {
		return nil, false
	}
	gormDB, ok := db.(*gorm.DB)
	return gormDB, ok
}
