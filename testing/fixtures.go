package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/orochi-mail/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestMailList creates an active list for userID
func (tf *TestFixtures) CreateTestMailList(userID uint) (*models.MailList, error) {
	list := &models.MailList{
		UserID:   userID,
		Name:     fmt.Sprintf("list-%d", rand.Intn(1_000_000)),
		ListType: models.MailListTypeGeneral,
		IsActive: true,
	}
	if err := tf.DB.DB.Create(list).Error; err != nil {
		return nil, fmt.Errorf("failed to create mail list: %w", err)
	}
	return list, nil
}

// CreateTestSubscribers creates n active subscribers on the list
func (tf *TestFixtures) CreateTestSubscribers(listID uint, n int) ([]*models.Subscriber, error) {
	subs := make([]*models.Subscriber, 0, n)
	for i := range n {
		subs = append(subs, &models.Subscriber{
			MailListID: listID,
			Email:      fmt.Sprintf("user%d.%d@example.com", i, rand.Intn(1_000_000)),
			Name:       fmt.Sprintf("User %d", i),
			IsActive:   true,
		})
	}
	if err := tf.DB.DB.Create(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscribers: %w", err)
	}
	return subs, nil
}

// CreateTestCampaign creates a draft campaign targeting the given lists
func (tf *TestFixtures) CreateTestCampaign(userID uint, listIDs ...uint) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UserID:      userID,
		Name:        "Spring sale",
		Subject:     "Spring sale starts today",
		Content:     "Hello there",
		HTMLContent: `<html><body><p>Hello</p><a href="https://shop.example.com/sale">Shop</a></body></html>`,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	for _, id := range listIDs {
		link := &models.CampaignMailList{CampaignID: campaign.ID, MailListID: id}
		if err := tf.DB.DB.Create(link).Error; err != nil {
			return nil, fmt.Errorf("failed to attach list %d: %w", id, err)
		}
	}
	return campaign, nil
}
