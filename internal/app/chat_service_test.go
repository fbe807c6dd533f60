package app_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"prism/internal/adapter/memory"
	"prism/internal/app"
	"prism/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockModel struct {
	chatFn   func(ctx context.Context, req app.CompletionRequest) (*app.Completion, error)
	visionFn func(ctx context.Context, image []byte, mimeType, prompt string, req app.CompletionRequest) (*app.Completion, error)
}

func (m *mockModel) Chat(ctx context.Context, req app.CompletionRequest) (*app.Completion, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &app.Completion{Content: "Eat more greens.", Model: "doubao-test", TokensUsed: 12}, nil
}

func (m *mockModel) Vision(ctx context.Context, image []byte, mimeType, prompt string, req app.CompletionRequest) (*app.Completion, error) {
	if m.visionFn != nil {
		return m.visionFn(ctx, image, mimeType, prompt, req)
	}
	return &app.Completion{Content: recognitionJSON, Model: "doubao-vision-test"}, nil
}

type mockImageStore struct {
	saveFn func(ctx context.Context, key, contentType string, data []byte) (string, error)
	keys   []string
}

func (m *mockImageStore) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.keys = append(m.keys, key)
	if m.saveFn != nil {
		return m.saveFn(ctx, key, contentType, data)
	}
	return "/uploads/" + key, nil
}

type chatFixture struct {
	svc    *app.ChatService
	db     *memory.DB
	owner  *domain.User
	model  *mockModel
	images *mockImageStore
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := memory.New()
	owner := newUser(t, db, true)
	model := &mockModel{}
	images := &mockImageStore{}
	meals := app.NewMealService(db, app.NewReconciler(db, db), nil)
	return &chatFixture{
		svc:    app.NewChatService(db, db, meals, model, images),
		db:     db,
		owner:  owner,
		model:  model,
		images: images,
	}
}

func TestChatSessions(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	s, err := f.svc.CreateSession(ctx, f.owner.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultChatTitle, s.Title)

	_, err = f.svc.CreateSession(ctx, f.owner.ID, strings.Repeat("t", 201))
	assert.True(t, domain.IsValidation(err))

	page, err := f.svc.ListSessions(ctx, f.owner.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = f.svc.GetSession(ctx, f.owner.ID+100, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.DeleteSession(ctx, f.owner.ID, s.ID))
	_, err = f.svc.GetSession(ctx, f.owner.ID, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	_, err := f.db.CreateCondition(ctx, &domain.HealthCondition{UserID: f.owner.ID, ConditionCode: "peanut", Title: "Peanuts", Type: domain.ConditionAllergy, Status: domain.StatusActive})
	require.NoError(t, err)

	var seen app.CompletionRequest
	f.model.chatFn = func(ctx context.Context, req app.CompletionRequest) (*app.Completion, error) {
		seen = req
		return &app.Completion{Content: "Skip the satay.", Model: "doubao-test", TokensUsed: 7}, nil
	}

	s, err := f.svc.CreateSession(ctx, f.owner.ID, "Dinner")
	require.NoError(t, err)

	reply, err := f.svc.SendMessage(ctx, f.owner, s.ID, "What should I eat?", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "Skip the satay.", reply.Content)
	assert.Equal(t, "doubao-test", reply.ModelName)
	assert.Equal(t, 7, reply.TokensUsed)

	require.Len(t, seen.Messages, 2)
	assert.Equal(t, domain.RoleSystem, seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "Peanuts")
	assert.Equal(t, "What should I eat?", seen.Messages[1].Content)
	assert.InDelta(t, 0.7, seen.Temperature, 1e-6)
	assert.Equal(t, 2000, seen.MaxTokens)

	detail, err := f.svc.GetSession(ctx, f.owner.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.MessageCount)
}

func TestSendMessage_HistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	var lastLen int
	f.model.chatFn = func(ctx context.Context, req app.CompletionRequest) (*app.Completion, error) {
		lastLen = len(req.Messages)
		return &app.Completion{Content: "ok"}, nil
	}
	s, _ := f.svc.CreateSession(ctx, f.owner.ID, "")
	for i := 0; i < 15; i++ {
		_, err := f.svc.SendMessage(ctx, f.owner, s.ID, "hi", nil)
		require.NoError(t, err)
	}
	// 20 history messages plus the system prompt.
	assert.Equal(t, 21, lastLen)
}

func TestSendMessage_ModelFailure(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.model.chatFn = func(ctx context.Context, req app.CompletionRequest) (*app.Completion, error) {
		return nil, errors.New("upstream 500")
	}

	s, _ := f.svc.CreateSession(ctx, f.owner.ID, "")
	_, err := f.svc.SendMessage(ctx, f.owner, s.ID, "hello", nil)
	assert.ErrorIs(t, err, app.ErrModel)

	_, err = f.svc.SendMessage(ctx, f.owner, s.ID, "  ", nil)
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.SendMessage(ctx, f.owner, s.ID+50, "hello", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecognizeBase64(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	var gotMIME string
	var gotTemp float32
	f.model.visionFn = func(ctx context.Context, image []byte, mimeType, prompt string, req app.CompletionRequest) (*app.Completion, error) {
		gotMIME, gotTemp = mimeType, req.Temperature
		assert.Equal(t, []byte("img"), image)
		assert.Contains(t, prompt, `"foods"`)
		return &app.Completion{Content: "```json\n" + recognitionJSON + "\n```"}, nil
	}

	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("img"))
	res, err := f.svc.RecognizeBase64(ctx, f.owner, encoded, "jpeg")
	require.NoError(t, err)
	assert.True(t, res.Parsed())
	assert.Equal(t, "image/png", gotMIME)
	assert.InDelta(t, 0.3, gotTemp, 1e-6)

	_, err = f.svc.RecognizeBase64(ctx, f.owner, "%%%", "jpeg")
	assert.True(t, domain.IsValidation(err))
}

func TestRecognizeUpload_StoresImage(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	res, err := f.svc.RecognizeUpload(ctx, f.owner, []byte("img"), "image/jpeg", "lunch.JPG")
	require.NoError(t, err)
	require.Len(t, f.images.keys, 1)
	assert.True(t, strings.HasSuffix(f.images.keys[0], ".jpg"))
	assert.Equal(t, "/uploads/"+f.images.keys[0], res.ImageURL)
	assert.True(t, res.Success)
}

func TestRecognizeFood_UnparsedKeepsRawText(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.model.visionFn = func(ctx context.Context, image []byte, mimeType, prompt string, req app.CompletionRequest) (*app.Completion, error) {
		return &app.Completion{Content: "Looks like noodles, maybe?"}, nil
	}

	res, err := f.svc.RecognizeFood(ctx, f.owner, []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, domain.RecognitionUnparsed, res.Kind)
	assert.Equal(t, "Looks like noodles, maybe?", res.RawText)
}

func TestQuickLog(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	food := app.ParseRecognition(recognitionJSON).Foods[0]
	req := app.QuickLogRequest{ClientID: "q1", MealType: domain.MealDinner, RecordDate: "2026-01-15", Food: food}

	m, created, err := f.svc.QuickLog(ctx, f.owner.ID, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, m.AIRecognized)
	assert.Equal(t, "Braised pork", m.Name)
	assert.Equal(t, 450.0, m.Calories)
	assert.Equal(t, domain.CategoryMeat, m.Category)

	again, created, err := f.svc.QuickLog(ctx, f.owner.ID, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m.ID, again.ID)

	req.Food.Nutrition.Sodium = nil
	_, _, err = f.svc.QuickLog(ctx, f.owner.ID, req)
	assert.True(t, domain.IsValidation(err))
}
