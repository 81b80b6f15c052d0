package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

var (
	// RunIDRegex 运行 ID 正则（字母数字连字符，1-64字符，覆盖 UUID）
	RunIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{1,64}$`)
)

// ValidateRunID 验证运行 ID
func ValidateRunID(runID string) bool {
	return RunIDRegex.MatchString(runID)
}

// ValidateCrewName 验证 crew 名称（必须是已知类型）
func ValidateCrewName(crew string) bool {
	_, err := model.ParseKind(crew)
	return err == nil
}

// SanitizeString 清理字符串（去除前后空格与控制字符）
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)

	var builder strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateRunIDParam Gin 中间件：验证路径参数中的 run_id
func ValidateRunIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("run_id")
		if runID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "run_id 参数缺失",
			})
			c.Abort()
			return
		}

		if !ValidateRunID(runID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "run_id 格式无效，必须是1-64个字母、数字或连字符",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// QueryInt 读取整数查询参数，缺失或非法时返回默认值
func QueryInt(c *gin.Context, key string, defaultVal int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}

// CORSMiddleware CORS 中间件（内部系统可选）
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
