package database

import (
	"fmt"

	"project-collab-backend/pkg/models"
)

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 用户管理
	CreateUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	DeleteUser(id string) error

	// Projects
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	GetProjectWithConversations(id string) (*models.Project, error)
	// GetProjectWithTeam returns the project with the owner and assistant IDs
	// populated, without conversations.
	GetProjectWithTeam(id string) (*models.Project, error)
	ListProjects() ([]models.Project, error)
	UpdateProject(p *models.Project) error
	DeleteProject(id string) error
	AddProjectAssistant(projectID, userID string) error

	// Conversations & Messages
	CreateConversation(c *models.Conversation, memberIDs []string) error
	GetConversation(id string) (*models.Conversation, error)
	IsConversationMember(conversationID, userID string) (bool, error)
	// InsertMessages atomically stamps the conversation's last_message_at and
	// inserts every message, all in one transaction.
	InsertMessages(conversationID string, msgs []models.Message) error
	ListMessages(conversationID string, limit int, cursor string) ([]models.Message, error)
	GetMessage(id string) (*models.Message, error)
	UpdateMessage(m *models.Message) error
	DeleteMessage(id string) error

	// Media
	UpsertMediaByID(m *models.Media) error
	UpsertMediaByName(m *models.Media) error
	GetMediaByID(id string) (*models.Media, error)
	ListMediaNames() ([]string, error)

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	PostgresDSN string
	UseMemoryDB bool
	Debug       bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.UseMemoryDB {
		fmt.Printf("🧪  Using in-memory database (dev/test only)\n")
		return NewMemoryDatabase()
	}

	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or USE_MEMORY_DB=true")
}
