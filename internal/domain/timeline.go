package domain

import "time"

// TimelineEvent — одна запись аудиторского следа заказа.
// Type совпадает с типом события в outbox, Reason опционален
// (например, причина отмены).
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
