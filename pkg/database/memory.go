package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"project-collab-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase 内存数据库实现（仅用于开发与测试）
type MemoryDatabase struct {
	mu sync.RWMutex

	users              map[string]models.User
	projects           map[string]models.Project
	projectAssistants  map[string]map[string]bool // projectID -> userID set
	conversations      map[string]models.Conversation
	conversationMember map[string]map[string]bool // conversationID -> userID set
	messages           map[string]models.Message
	media              map[string]models.Media
	mediaByName        map[string]string // name -> media id
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users:              make(map[string]models.User),
		projects:           make(map[string]models.Project),
		projectAssistants:  make(map[string]map[string]bool),
		conversations:      make(map[string]models.Conversation),
		conversationMember: make(map[string]map[string]bool),
		messages:           make(map[string]models.Message),
		media:              make(map[string]models.Media),
		mediaByName:        make(map[string]string),
	}
}

// CreateUser 创建用户
func (db *MemoryDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	db.users[user.ID] = *user
	return nil
}

// GetUserByID 根据ID获取用户
func (db *MemoryDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return &user, nil
}

// UpdateUser 更新用户
func (db *MemoryDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	existing.Name = user.Name
	existing.Surname = user.Surname
	existing.UpdatedAt = time.Now()
	db.users[user.ID] = existing
	*user = existing
	return nil
}

// DeleteUser 删除用户
func (db *MemoryDatabase) DeleteUser(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.users, id)
	return nil
}

// CreateProject 创建项目
func (db *MemoryDatabase) CreateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	db.projects[p.ID] = *p
	return nil
}

// GetProject 获取项目基本信息
func (db *MemoryDatabase) GetProject(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.getProjectLocked(id)
}

func (db *MemoryDatabase) getProjectLocked(id string) (*models.Project, error) {
	p, ok := db.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	p.Conversations = nil
	p.Assistants = nil
	return &p, nil
}

// GetProjectWithConversations 获取项目及其会话列表
func (db *MemoryDatabase) GetProjectWithConversations(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, err := db.getProjectLocked(id)
	if err != nil {
		return nil, err
	}

	conversations := []models.Conversation{}
	for _, c := range db.conversations {
		if c.ProjectID == id {
			c.Members = nil
			c.Messages = nil
			conversations = append(conversations, c)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	p.Conversations = conversations
	return p, nil
}

// GetProjectWithTeam 获取项目及协作成员ID列表
func (db *MemoryDatabase) GetProjectWithTeam(id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, err := db.getProjectLocked(id)
	if err != nil {
		return nil, err
	}

	assistants := []string{}
	for uid := range db.projectAssistants[id] {
		assistants = append(assistants, uid)
	}
	sort.Strings(assistants)
	p.Assistants = assistants
	return p, nil
}

// ListProjects 获取所有项目
func (db *MemoryDatabase) ListProjects() ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	projects := []models.Project{}
	for _, p := range db.projects {
		p.Conversations = nil
		p.Assistants = nil
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

// UpdateProject 更新项目
func (db *MemoryDatabase) UpdateProject(p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.projects[p.ID]
	if !ok {
		return fmt.Errorf("project not found")
	}
	existing.Name = p.Name
	existing.Location = p.Location
	existing.UpdatedAt = time.Now()
	db.projects[p.ID] = existing
	*p = existing
	return nil
}

// DeleteProject 删除项目
func (db *MemoryDatabase) DeleteProject(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[id]; !ok {
		return fmt.Errorf("project not found")
	}
	delete(db.projects, id)
	delete(db.projectAssistants, id)
	for cid, c := range db.conversations {
		if c.ProjectID == id {
			delete(db.conversations, cid)
			delete(db.conversationMember, cid)
		}
	}
	return nil
}

// AddProjectAssistant 添加项目协作成员
func (db *MemoryDatabase) AddProjectAssistant(projectID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.projects[projectID]; !ok {
		return fmt.Errorf("project not found")
	}
	if db.projectAssistants[projectID] == nil {
		db.projectAssistants[projectID] = make(map[string]bool)
	}
	db.projectAssistants[projectID][userID] = true
	return nil
}

// CreateConversation 创建会话并写入固定成员列表
func (db *MemoryDatabase) CreateConversation(c *models.Conversation, memberIDs []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	stored := *c
	stored.Members = nil
	stored.Messages = nil
	db.conversations[c.ID] = stored

	members := make(map[string]bool)
	for _, uid := range memberIDs {
		members[uid] = true
	}
	db.conversationMember[c.ID] = members
	c.Members = memberIDs
	return nil
}

// GetConversation 获取会话及其成员ID
func (db *MemoryDatabase) GetConversation(id string) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found")
	}
	members := []string{}
	for uid := range db.conversationMember[id] {
		members = append(members, uid)
	}
	sort.Strings(members)
	c.Members = members
	return &c, nil
}

// IsConversationMember 判断用户是否为会话成员
func (db *MemoryDatabase) IsConversationMember(conversationID, userID string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.conversationMember[conversationID][userID], nil
}

// InsertMessages 更新会话时间戳并插入全部消息
func (db *MemoryDatabase) InsertMessages(conversationID string, msgs []models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation not found")
	}
	now := time.Now()
	c.LastMessageAt = &now
	c.UpdatedAt = now
	db.conversations[conversationID] = c

	for _, m := range msgs {
		m.ConversationID = conversationID
		db.messages[m.ID] = m
	}
	return nil
}

// ListMessages 按ID倒序分页获取消息
func (db *MemoryDatabase) ListMessages(conversationID string, limit int, cursor string) ([]models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	all := []models.Message{}
	for _, m := range db.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if cursor != "" && m.ID >= cursor {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetMessage 根据ID获取消息
func (db *MemoryDatabase) GetMessage(id string) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.messages[id]
	if !ok {
		return nil, fmt.Errorf("message not found")
	}
	return &m, nil
}

// UpdateMessage 更新消息内容
func (db *MemoryDatabase) UpdateMessage(m *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.messages[m.ID]
	if !ok {
		return fmt.Errorf("message not found")
	}
	existing.Content = m.Content
	db.messages[m.ID] = existing
	*m = existing
	return nil
}

// DeleteMessage 删除消息
func (db *MemoryDatabase) DeleteMessage(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.messages[id]; !ok {
		return fmt.Errorf("message not found")
	}
	delete(db.messages, id)
	return nil
}

// UpsertMediaByID 按ID upsert媒体文件
func (db *MemoryDatabase) UpsertMediaByID(m *models.Media) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	if existing, ok := db.media[m.ID]; ok {
		m.CreatedAt = existing.CreatedAt
		delete(db.mediaByName, existing.Name)
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	db.media[m.ID] = *m
	db.mediaByName[m.Name] = m.ID
	return nil
}

// UpsertMediaByName 按文件名 upsert媒体文件
func (db *MemoryDatabase) UpsertMediaByName(m *models.Media) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	if id, ok := db.mediaByName[m.Name]; ok {
		existing := db.media[id]
		m.ID = id
		m.CreatedAt = existing.CreatedAt
	} else {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	db.media[m.ID] = *m
	db.mediaByName[m.Name] = m.ID
	return nil
}

// GetMediaByID 根据ID获取媒体文件
func (db *MemoryDatabase) GetMediaByID(id string) (*models.Media, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.media[id]
	if !ok {
		return nil, fmt.Errorf("media not found")
	}
	return &m, nil
}

// ListMediaNames 获取所有媒体文件名
func (db *MemoryDatabase) ListMediaNames() ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := []string{}
	for name := range db.mediaByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HealthCheck 健康检查
func (db *MemoryDatabase) HealthCheck() error {
	return nil
}

// Close 关闭连接（内存实现无需操作）
func (db *MemoryDatabase) Close() error {
	return nil
}
