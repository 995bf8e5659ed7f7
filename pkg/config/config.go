package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string
	BaseURL     string // 对外基础URL，用于拼接 /files/:id 等绝对链接

	// 数据库配置
	UseMemoryDB bool
	PostgresDSN string

	// Clerk身份服务配置
	ClerkSecretKey     string
	ClerkAPIURL        string
	ClerkJWKSURL       string
	ClerkWebhookSecret string
	AuthorizedParties  []string

	// 对象存储配置（S3兼容）
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
	S3PublicBaseURL string

	// CORS配置
	AllowedOrigins []string

	// 调试配置
	Debug bool
}

// LoadConfig 加载配置（支持 .env 文件与环境变量）
func LoadConfig() *Config {
	// 根据环境加载对应的 .env 文件
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development" // 默认开发环境
	}

	// 按优先级加载环境文件
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		// 默认值
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "4000"),
		BaseURL:     strings.TrimSpace(getEnvWithDefault("BASE_URL", "http://localhost:4000")),
		UseMemoryDB: getEnvBool("USE_MEMORY_DB", false),
		Debug:       getEnvBool("DEBUG", false),
	}

	// 数据库配置
	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))

	// Clerk配置
	config.ClerkSecretKey = strings.TrimSpace(os.Getenv("CLERK_SECRET_KEY"))
	config.ClerkAPIURL = strings.TrimSpace(getEnvWithDefault("CLERK_API_URL", "https://api.clerk.com/v1"))
	config.ClerkJWKSURL = strings.TrimSpace(getEnvWithDefault("CLERK_JWKS_URL", config.ClerkAPIURL+"/jwks"))
	config.ClerkWebhookSecret = strings.TrimSpace(os.Getenv("CLERK_WEBHOOK_SECRET"))
	config.AuthorizedParties = splitAndTrim(os.Getenv("CLERK_AUTHORIZED_PARTIES"))

	// 对象存储配置
	config.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	config.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	config.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	config.S3Bucket = strings.TrimSpace(getEnvWithDefault("S3_BUCKET", "profile-files"))
	config.S3UseSSL = getEnvBool("S3_USE_SSL", true)
	config.S3PublicBaseURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL"))

	// CORS配置
	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	// 环境特定配置
	if config.Environment == "production" {
		// 生产环境必须使用外部数据库
		if config.PostgresDSN == "" && !config.UseMemoryDB {
			fmt.Println("⚠️  WARNING: Production environment without POSTGRES_DSN, falling back to in-memory store")
			config.UseMemoryDB = true
		}
		// 生产环境关闭调试
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config. It initializes once and
// is shared read-only afterwards.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 验证端口
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// 验证Clerk密钥
	if c.ClerkSecretKey == "" {
		if c.Environment == "production" {
			return fmt.Errorf("CLERK_SECRET_KEY must be set in production")
		}
		fmt.Println("⚠️  CLERK_SECRET_KEY not set; authenticated routes will reject every token")
	}
	if c.ClerkWebhookSecret == "" && c.Environment == "production" {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET must be set in production")
	}

	// 验证数据库配置
	if !c.UseMemoryDB && c.PostgresDSN == "" {
		return fmt.Errorf("数据库配置不完整：请配置 POSTGRES_DSN 或设置 USE_MEMORY_DB=true")
	}

	// 验证对象存储配置（未配置Endpoint时由storage层退化为内存bucket）
	if c.S3Endpoint != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("S3_ENDPOINT is set but S3_ACCESS_KEY/S3_SECRET_KEY are missing")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitAndTrim 拆分逗号列表并去除空项
func splitAndTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	// 检查文件是否存在
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return // 文件不存在，静默返回
	}

	file, err := os.Open(filename)
	if err != nil {
		return // 无法打开文件，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// 解析 KEY=VALUE 格式
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// 移除值两端的引号（如果有）
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
