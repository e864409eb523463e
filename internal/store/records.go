package store

import (
	"github.com/farellandr/duesledger/internal/errs"
	"github.com/farellandr/duesledger/internal/models"
)

func (s *Store) InsertNotifications(notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := s.db.Create(&notifications).Error; err != nil {
		return errs.Wrap("store.insert_notifications", errs.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) InsertWebhookLog(entry *models.WebhookLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return errs.Wrap("store.insert_webhook_log", errs.ErrUnavailable, err)
	}
	return nil
}
