package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"project-collab-backend/pkg/models"

	_ "github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// 尝试多种连接策略来兼容不同的托管Postgres环境
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数
		db.SetMaxOpenConns(5)                  // 限制最大连接数
		db.SetMaxIdleConns(2)                  // 限制空闲连接数
		db.SetConnMaxLifetime(5 * time.Minute) // 连接最大生命周期

		// 测试连接
		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}
	}

	// 所有策略都失败了
	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// CreateUser 创建用户
func (db *PostgresDatabase) CreateUser(user *models.User) error {
	query := `
		INSERT INTO public.users (id, name, surname, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := db.db.QueryRow(query, user.ID, user.Name, user.Surname).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID 根据ID获取用户
func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, COALESCE(name,''), COALESCE(surname,''), created_at, updated_at
		FROM public.users
		WHERE id = $1
	`

	var user models.User
	err := db.db.QueryRow(query, id).Scan(
		&user.ID, &user.Name, &user.Surname, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUser 更新用户
func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	query := `
		UPDATE public.users
		SET name = $1,
		    surname = $2,
		    updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.db.Exec(query, user.Name, user.Surname, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser 删除用户
func (db *PostgresDatabase) DeleteUser(id string) error {
	_, err := db.db.Exec(`DELETE FROM public.users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// CreateProject 创建项目
func (db *PostgresDatabase) CreateProject(p *models.Project) error {
	query := `
		INSERT INTO public.projects (id, name, location, description, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := db.db.QueryRow(query, p.ID, p.Name, p.Location, p.Description, p.Status, p.OwnerID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject 获取项目基本信息
func (db *PostgresDatabase) GetProject(id string) (*models.Project, error) {
	query := `
		SELECT id, name, COALESCE(location,''), COALESCE(description,''), status, owner_id, created_at, updated_at
		FROM public.projects
		WHERE id = $1
	`
	var p models.Project
	err := db.db.QueryRow(query, id).Scan(
		&p.ID, &p.Name, &p.Location, &p.Description, &p.Status, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project not found")
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// GetProjectWithConversations 获取项目及其会话列表
func (db *PostgresDatabase) GetProjectWithConversations(id string) (*models.Project, error) {
	p, err := db.GetProject(id)
	if err != nil {
		return nil, err
	}

	rows, err := db.db.Query(`
		SELECT id, project_id, title, visibility, last_read_at, last_message_at, created_at, updated_at
		FROM public.conversations
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list project conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Visibility,
			&c.LastReadAt, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	p.Conversations = conversations
	return p, nil
}

// GetProjectWithTeam 获取项目及协作成员ID列表
func (db *PostgresDatabase) GetProjectWithTeam(id string) (*models.Project, error) {
	p, err := db.GetProject(id)
	if err != nil {
		return nil, err
	}

	rows, err := db.db.Query(`
		SELECT user_id FROM public.project_assistants WHERE project_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list project assistants: %w", err)
	}
	defer rows.Close()

	assistants := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan assistant: %w", err)
		}
		assistants = append(assistants, uid)
	}
	p.Assistants = assistants
	return p, nil
}

// ListProjects 获取所有项目
func (db *PostgresDatabase) ListProjects() ([]models.Project, error) {
	rows, err := db.db.Query(`
		SELECT id, name, COALESCE(location,''), COALESCE(description,''), status, owner_id, created_at, updated_at
		FROM public.projects
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.Description, &p.Status,
			&p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// UpdateProject 更新项目（整行更新，调用方负责先读后改）
func (db *PostgresDatabase) UpdateProject(p *models.Project) error {
	query := `
		UPDATE public.projects
		SET name = $1,
		    location = $2,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, p.Name, p.Location, p.ID).Scan(&p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("project not found")
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// DeleteProject 删除项目（级联删除会话与成员关系）
func (db *PostgresDatabase) DeleteProject(id string) error {
	result, err := db.db.Exec(`DELETE FROM public.projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("project not found")
	}
	return nil
}

// AddProjectAssistant 添加项目协作成员
func (db *PostgresDatabase) AddProjectAssistant(projectID, userID string) error {
	_, err := db.db.Exec(`
		INSERT INTO public.project_assistants (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to add project assistant: %w", err)
	}
	return nil
}

// CreateConversation 创建会话并写入固定成员列表
func (db *PostgresDatabase) CreateConversation(c *models.Conversation, memberIDs []string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO public.conversations (id, project_id, title, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(query, c.ID, c.ProjectID, c.Title, c.Visibility).
		Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, uid := range memberIDs {
		if _, err := tx.Exec(`
			INSERT INTO public.conversation_members (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, c.ID, uid); err != nil {
			return fmt.Errorf("failed to add conversation member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	c.Members = memberIDs
	return nil
}

// GetConversation 获取会话及其成员ID
func (db *PostgresDatabase) GetConversation(id string) (*models.Conversation, error) {
	query := `
		SELECT id, project_id, title, visibility, last_read_at, last_message_at, created_at, updated_at
		FROM public.conversations
		WHERE id = $1
	`
	var c models.Conversation
	err := db.db.QueryRow(query, id).Scan(
		&c.ID, &c.ProjectID, &c.Title, &c.Visibility,
		&c.LastReadAt, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := db.db.Query(`
		SELECT user_id FROM public.conversation_members WHERE conversation_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, uid)
	}
	c.Members = members
	return &c, nil
}

// IsConversationMember 判断用户是否为会话成员
func (db *PostgresDatabase) IsConversationMember(conversationID, userID string) (bool, error) {
	var exists bool
	err := db.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM public.conversation_members
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check conversation membership: %w", err)
	}
	return exists, nil
}

// InsertMessages 在同一事务内更新会话时间戳并插入全部消息
func (db *PostgresDatabase) InsertMessages(conversationID string, msgs []models.Message) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE public.conversations
		SET last_message_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, conversationID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	for i := range msgs {
		m := &msgs[i]
		var attachments interface{}
		if len(m.Attachments) > 0 {
			attachments = []byte(m.Attachments)
		}
		if err := tx.QueryRow(`
			INSERT INTO public.messages (id, conversation_id, role, content, attachments, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, m.ID, conversationID, m.Role, m.Content, attachments, m.CreatedAt).
			Scan(&m.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// ListMessages 按创建时间倒序分页获取消息
// cursor 为上一页最后一条消息的ID，空字符串表示第一页
func (db *PostgresDatabase) ListMessages(conversationID string, limit int, cursor string) ([]models.Message, error) {
	rows, err := db.db.Query(`
		SELECT id, conversation_id, role, content, attachments, created_at
		FROM public.messages
		WHERE conversation_id = $1 AND ($2 = '' OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, conversationID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, nil
}

// GetMessage 根据ID获取消息
func (db *PostgresDatabase) GetMessage(id string) (*models.Message, error) {
	row := db.db.QueryRow(`
		SELECT id, conversation_id, role, content, attachments, created_at
		FROM public.messages
		WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("message not found")
		}
		return nil, err
	}
	return m, nil
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var attachments []byte
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &attachments, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	if len(attachments) > 0 {
		m.Attachments = json.RawMessage(attachments)
	}
	return &m, nil
}

// UpdateMessage 更新消息内容
func (db *PostgresDatabase) UpdateMessage(m *models.Message) error {
	result, err := db.db.Exec(`
		UPDATE public.messages SET content = $1 WHERE id = $2
	`, m.Content, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("message not found")
	}
	return nil
}

// DeleteMessage 删除消息
func (db *PostgresDatabase) DeleteMessage(id string) error {
	result, err := db.db.Exec(`DELETE FROM public.messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("message not found")
	}
	return nil
}

// UpsertMediaByID 按ID upsert媒体文件
func (db *PostgresDatabase) UpsertMediaByID(m *models.Media) error {
	query := `
		INSERT INTO public.media (id, name, data, mime_type, project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			data = EXCLUDED.data,
			mime_type = EXCLUDED.mime_type,
			project_id = EXCLUDED.project_id,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := db.db.QueryRow(query, m.ID, m.Name, m.Data, m.MimeType, nullableString(m.ProjectID)).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert media: %w", err)
	}
	return nil
}

// UpsertMediaByName 按文件名 upsert媒体文件
func (db *PostgresDatabase) UpsertMediaByName(m *models.Media) error {
	query := `
		INSERT INTO public.media (id, name, data, mime_type, project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name)
		DO UPDATE SET
			data = EXCLUDED.data,
			mime_type = EXCLUDED.mime_type,
			project_id = EXCLUDED.project_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, m.ID, m.Name, m.Data, m.MimeType, nullableString(m.ProjectID)).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert media by name: %w", err)
	}
	return nil
}

// GetMediaByID 根据ID获取媒体文件
func (db *PostgresDatabase) GetMediaByID(id string) (*models.Media, error) {
	query := `
		SELECT id, name, data, mime_type, COALESCE(project_id,''), created_at, updated_at
		FROM public.media
		WHERE id = $1
	`
	var m models.Media
	err := db.db.QueryRow(query, id).Scan(
		&m.ID, &m.Name, &m.Data, &m.MimeType, &m.ProjectID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("media not found")
		}
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return &m, nil
}

// ListMediaNames 获取所有媒体文件名
func (db *PostgresDatabase) ListMediaNames() ([]string, error) {
	rows, err := db.db.Query(`SELECT name FROM public.media ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan media name: %w", err)
		}
		names = append(names, n)
	}
	return names, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	if err := db.db.Ping(); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
