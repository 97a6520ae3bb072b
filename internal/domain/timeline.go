package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderPlaced   = "OrderPlaced"
	TimelineOrderCanceled = "OrderCanceled"
	TimelineFeedbackLeft  = "FeedbackLeft"
	TimelineCommentAdded  = "CommentAdded"
	TimelineFileAttached  = "FileAttached"
	TimelineFileRemoved   = "FileRemoved"
)

// TimelineEvent описывает событие в истории заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}
