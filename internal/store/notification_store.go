package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nhle/taskhub/internal/model"
)

const notificationColumns = `id, actor, verb, related_object_ref, link, timestamp, is_read`

// FetchNotifications returns every notification, newest first.
func (s *SQLiteStore) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	var ns []model.Notification
	err := s.db.SelectContext(ctx, &ns,
		"SELECT "+notificationColumns+" FROM notifications ORDER BY timestamp DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return ns, nil
}

// CreateNotification inserts n. A zero timestamp is set to now.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.clock()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (actor, verb, related_object_ref, link, timestamp, is_read)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Actor, n.Verb, n.RelatedObjectRef, n.Link, n.Timestamp.UTC(), boolToInt(n.IsRead),
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Notification{}, fmt.Errorf("reading notification id: %w", err)
	}
	n.ID = strconv.FormatInt(id, 10)
	n.Timestamp = n.Timestamp.UTC()
	return n, nil
}

// MarkNotificationRead marks a single notification as read. Marking an
// already-read notification succeeds.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return checkAffected(res, "notification", id)
}

// MarkAllNotificationsRead marks every unread notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1 WHERE is_read = 0"); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}
