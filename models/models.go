// Package models holds the persistent entities of the mail delivery service
package models

// All returns every model managed by migrations, in dependency order
func All() []any {
	return []any{
		&MailList{},
		&Subscriber{},
		&Campaign{},
		&CampaignMailList{},
		&DeliveryRecord{},
		&ClickEvent{},
		&DailyAnalytics{},
		&BlacklistEntry{},
	}
}
