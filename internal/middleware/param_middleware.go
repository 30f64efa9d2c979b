package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExtractUintParam проверяет числовой идентификатор из пути и кладет его в
// контекст под ключом key. Ноль и нечисловые значения дают 400.
func ExtractUintParam(param, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(param)
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || value == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      param + " must be a positive integer",
				"error_type": "validation",
				"param":      param,
			})
			return
		}
		c.Set(key, uint(value))
		c.Next()
	}
}

// UintParam возвращает значение, сохраненное ExtractUintParam
func UintParam(c *gin.Context, key string) uint {
	return c.MustGet(key).(uint)
}
