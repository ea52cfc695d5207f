// Package testing provides test utilities and database setup for testing the persona messaging system
package testing

import (
	"fmt"
	"math/rand"

	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCreator creates an active creator with a known password ("TestPass123!")
func (tf *TestFixtures) CreateTestCreator() (*models.Creator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	creator := &models.Creator{
		UUID:         uuid.New(),
		Email:        fmt.Sprintf("creator.%s@example.com", randomDigits),
		PasswordHash: string(hashedPassword),
		DisplayName:  "Test Creator",
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(creator).Error; err != nil {
		return nil, fmt.Errorf("failed to create test creator: %w", err)
	}

	return creator, nil
}

// CreateTestFan creates a fan. Consent flags are off unless withConsent is set.
func (tf *TestFixtures) CreateTestFan(withConsent bool) (*models.Fan, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	fan := &models.Fan{
		UUID:            uuid.New(),
		PlatformHandle:  fmt.Sprintf("fan_%s", randomDigits),
		SpendTier:       models.SpendTierRegular,
		AgeAffirmed:     utils.ToPtr(false),
		RomanticConsent: utils.ToPtr(false),
	}

	if withConsent {
		fan.AgeAffirmed = utils.ToPtr(true)
		fan.RomanticConsent = utils.ToPtr(true)
		fan.ConsentAffirmedAt = utils.UTCNowPtr()
	}

	if err := tf.DB.DB.Create(fan).Error; err != nil {
		return nil, fmt.Errorf("failed to create test fan: %w", err)
	}

	return fan, nil
}

// CreateTestPersona creates an active persona owned by the given creator
func (tf *TestFixtures) CreateTestPersona(creatorID uint) (*models.Persona, error) {
	randomDigits := fmt.Sprintf("%06d", rand.Intn(900000)+100000)

	persona := &models.Persona{
		UUID:           uuid.New(),
		CreatorID:      creatorID,
		Name:           fmt.Sprintf("persona_%s", randomDigits),
		DisplayName:    "Aiko",
		VoicePrompt:    "You are Aiko, a cheerful virtual companion.",
		DisclosureText: "Aiko is an AI character and not a real person.",
		AllowedTopics:  []string{"music", "travel"},
		IsActive:       utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(persona).Error; err != nil {
		return nil, fmt.Errorf("failed to create test persona: %w", err)
	}

	return persona, nil
}

// CreateTestConversation creates an active conversation between a fan and a persona
func (tf *TestFixtures) CreateTestConversation(fanID, personaID uint) (*models.Conversation, error) {
	conversation := &models.Conversation{
		UUID:           uuid.New(),
		FanID:          fanID,
		PersonaID:      personaID,
		Sentiment:      models.SentimentNeutral,
		LastActivityAt: utils.UTCNow(),
		IsActive:       utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(conversation).Error; err != nil {
		return nil, fmt.Errorf("failed to create test conversation: %w", err)
	}

	return conversation, nil
}

// CreateTestMessage creates a message in the given conversation
func (tf *TestFixtures) CreateTestMessage(conversationID uint, sender, content string) (*models.Message, error) {
	message := &models.Message{
		UUID:             uuid.New(),
		ConversationID:   conversationID,
		Sender:           sender,
		Content:          content,
		ModerationStatus: models.MessageModerationApproved,
		SentAt:           utils.UTCNowPtr(),
	}

	if err := tf.DB.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}

	return message, nil
}

// CreateTestModerationItem creates a pending moderation queue item
func (tf *TestFixtures) CreateTestModerationItem(personaID, fanID *uint, reason, severity string) (*models.ModerationQueueItem, error) {
	item := &models.ModerationQueueItem{
		UUID:        uuid.New(),
		PersonaID:   personaID,
		FanID:       fanID,
		ContentText: "flagged content",
		FlagReason:  reason,
		Severity:    severity,
		Status:      models.ModerationStatusPending,
	}

	if err := tf.DB.DB.Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to create test moderation item: %w", err)
	}

	return item, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(action, entityType string, entityID uint, success bool) (*models.AuditLog, error) {
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Success:    utils.ToPtr(success),
		IPAddress:  &ipAddress,
		UserAgent:  &userAgent,
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}
