package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"prism/internal/domain"

	"github.com/google/uuid"
)

const (
	chatHistoryLimit    = 20
	chatTemperature     = 0.7
	visionTemperature   = 0.3
	maxCompletionTokens = 2000
	maxChatContent      = 4000
	maxSessionTitle     = 200
)

// ErrModel marks a failed call to the language model.
var ErrModel = errors.New("model request failed")

// ModelMessage is one prompt turn sent to the model.
type ModelMessage struct {
	Role    domain.ChatRole
	Content string
}

// CompletionRequest carries the sampling parameters of one model call.
type CompletionRequest struct {
	Messages    []ModelMessage
	Temperature float32
	MaxTokens   int
}

// Completion is the model's reply.
type Completion struct {
	Content    string
	Model      string
	TokensUsed int
}

// ModelClient talks to a chat and vision capable language model.
type ModelClient interface {
	Chat(ctx context.Context, req CompletionRequest) (*Completion, error)
	Vision(ctx context.Context, image []byte, mimeType, prompt string, req CompletionRequest) (*Completion, error)
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// QuickLogRequest turns one recognized food into a meal record.
type QuickLogRequest struct {
	ClientID   string                 `json:"client_id"`
	MealType   domain.MealType        `json:"meal_type"`
	RecordDate string                 `json:"record_date"`
	ImageURL   string                 `json:"image_url"`
	Food       domain.FoodRecognition `json:"food"`
}

// ChatService runs assistant conversations and food recognition.
type ChatService struct {
	chats      domain.ChatRepository
	conditions domain.ConditionRepository
	meals      *MealService
	model      ModelClient
	images     ImageStore
	now        func() time.Time
}

// NewChatService creates a chat service. images may be nil, in which case
// uploads are recognized but not kept.
func NewChatService(chats domain.ChatRepository, conditions domain.ConditionRepository, meals *MealService, model ModelClient, images ImageStore) *ChatService {
	return &ChatService{
		chats:      chats,
		conditions: conditions,
		meals:      meals,
		model:      model,
		images:     images,
		now:        time.Now,
	}
}

// CreateSession opens a new conversation.
func (s *ChatService) CreateSession(ctx context.Context, userID int64, title string) (*domain.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultChatTitle
	}
	if len([]rune(title)) > maxSessionTitle {
		return nil, &domain.ValidationError{Field: "title", Reason: "must be at most 200 characters"}
	}
	now := s.now().UTC()
	return s.chats.CreateSession(ctx, &domain.ChatSession{
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ListSessions returns one page of the user's sessions, most recently
// active first.
func (s *ChatService) ListSessions(ctx context.Context, userID int64, page, size int) (*Page[domain.ChatSession], error) {
	page, size = clampPage(page, size)
	items, total, err := s.chats.ListSessions(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, size), nil
}

// GetSession returns a session with its messages in chronological order.
func (s *ChatService) GetSession(ctx context.Context, userID, id int64) (*domain.ChatSession, error) {
	session, err := s.session(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chats.RecentChatMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	session.Messages = msgs
	session.MessageCount = len(msgs)
	return session, nil
}

// DeleteSession removes a session and its messages.
func (s *ChatService) DeleteSession(ctx context.Context, userID, id int64) error {
	return s.chats.DeleteSession(ctx, userID, id)
}

// SendMessage stores the user's message, asks the model with the recent
// history and the user's health profile, and stores the reply.
func (s *ChatService) SendMessage(ctx context.Context, user *domain.User, sessionID int64, content string, attachments json.RawMessage) (*domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "is required"}
	}
	if len([]rune(content)) > maxChatContent {
		return nil, &domain.ValidationError{Field: "content", Reason: "must be at most 4000 characters"}
	}
	if _, err := s.session(ctx, user.ID, sessionID); err != nil {
		return nil, err
	}

	if _, err := s.chats.AddChatMessage(ctx, &domain.ChatMessage{
		SessionID:   sessionID,
		Role:        domain.RoleUser,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	history, err := s.chats.RecentChatMessages(ctx, sessionID, chatHistoryLimit)
	if err != nil {
		return nil, err
	}
	conditions, err := s.conditions.ListConditions(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}

	msgs := make([]ModelMessage, 0, len(history)+1)
	msgs = append(msgs, ModelMessage{Role: domain.RoleSystem, Content: systemPrompt(user, conditions)})
	for _, m := range history {
		msgs = append(msgs, ModelMessage{Role: m.Role, Content: m.Content})
	}

	reply, err := s.model.Chat(ctx, CompletionRequest{
		Messages:    msgs,
		Temperature: chatTemperature,
		MaxTokens:   maxCompletionTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}

	now := s.now().UTC()
	stored, err := s.chats.AddChatMessage(ctx, &domain.ChatMessage{
		SessionID:  sessionID,
		Role:       domain.RoleAssistant,
		Content:    reply.Content,
		ModelName:  reply.Model,
		TokensUsed: reply.TokensUsed,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.chats.TouchSession(ctx, sessionID, now); err != nil {
		return nil, err
	}
	return stored, nil
}

// RecognizeBase64 recognizes food in a base64 encoded image. A data URL
// prefix is accepted.
func (s *ChatService) RecognizeBase64(ctx context.Context, user *domain.User, encoded, imageType string) (*domain.RecognitionResult, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		imageType = strings.TrimPrefix(encoded[:i], "data:")
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(data) == 0 {
		return nil, &domain.ValidationError{Field: "image_base64", Reason: "must be a base64 encoded image"}
	}
	return s.RecognizeFood(ctx, user, data, imageMIME(imageType))
}

// RecognizeUpload stores an uploaded image and recognizes the food in it.
func (s *ChatService) RecognizeUpload(ctx context.Context, user *domain.User, data []byte, contentType, filename string) (*domain.RecognitionResult, error) {
	var url string
	if s.images != nil {
		ext := strings.ToLower(filepath.Ext(filename))
		if ext == "" {
			ext = "." + strings.TrimPrefix(contentType, "image/")
		}
		key := fmt.Sprintf("food/%d/%s%s", user.ID, uuid.NewString(), ext)
		var err error
		if url, err = s.images.Save(ctx, key, contentType, data); err != nil {
			return nil, err
		}
	}

	res, err := s.RecognizeFood(ctx, user, data, contentType)
	if err != nil {
		return nil, err
	}
	res.ImageURL = url
	return res, nil
}

// RecognizeFood asks the vision model to identify food in an image.
func (s *ChatService) RecognizeFood(ctx context.Context, user *domain.User, image []byte, mimeType string) (*domain.RecognitionResult, error) {
	conditions, err := s.conditions.ListConditions(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}
	reply, err := s.model.Vision(ctx, image, mimeType, recognitionPrompt(user, conditions), CompletionRequest{
		Temperature: visionTemperature,
		MaxTokens:   maxCompletionTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}
	res := ParseRecognition(reply.Content)
	return &res, nil
}

// QuickLog records a recognized food as an AI-assisted meal. It is
// idempotent by client id like any other meal creation.
func (s *ChatService) QuickLog(ctx context.Context, userID int64, req QuickLogRequest) (*domain.Meal, bool, error) {
	if err := checkFood(req.Food); err != nil {
		return nil, false, err
	}
	day := req.RecordDate
	if day == "" {
		day = s.now().In(time.Local).Format(domain.DayLayout)
	}
	f := req.Food
	return s.meals.Create(ctx, userID, domain.MealInput{
		ClientID:     req.ClientID,
		Name:         f.FoodName,
		Portion:      f.EstimatedPortion,
		Calories:     f.Nutrition.Calories,
		Sodium:       f.Nutrition.Sodium,
		Purine:       f.Nutrition.Purine,
		Protein:      f.Nutrition.Protein,
		Carbs:        f.Nutrition.Carbs,
		Fat:          f.Nutrition.Fat,
		Fiber:        f.Nutrition.Fiber,
		MealType:     req.MealType,
		Category:     f.Category,
		RecordDate:   day,
		Note:         truncateRunes(f.HealthTips, 500),
		ImageURL:     req.ImageURL,
		AIRecognized: true,
	})
}

func (s *ChatService) session(ctx context.Context, userID, id int64) (*domain.ChatSession, error) {
	session, err := s.chats.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("chat session %d: %w", id, domain.ErrNotFound)
	}
	return session, nil
}

func imageMIME(imageType string) string {
	switch t := strings.ToLower(strings.TrimSpace(imageType)); {
	case t == "":
		return "image/jpeg"
	case strings.HasPrefix(t, "image/"):
		return t
	case t == "jpg":
		return "image/jpeg"
	default:
		return "image/" + t
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
