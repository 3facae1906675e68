package feed

import (
	"encoding/json"
	"fmt"
	"time"
)

// event kinds broadcast by the backend on the realtime channel.
// the wire shapes mirror the REST resources; like events add the acting
// user id and the implied direction of the toggle.
const (
	EventKindPostAdded      = "POST_ADDED"
	EventKindPostUpdated    = "POST_UPDATED"
	EventKindPostDeleted    = "POST_DELETED"
	EventKindPostLiked      = "POST_LIKED"
	EventKindCommentAdded   = "COMMENT_ADDED"
	EventKindCommentUpdated = "COMMENT_UPDATED"
	EventKindCommentDeleted = "COMMENT_DELETED"
	EventKindCommentLiked   = "COMMENT_LIKED"
)

// JSON text frame `{"type": ..., "data": ...}`
type Event struct {
	Kind string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func ParseEvent(frame []byte) (*Event, error) {
	event := &Event{}
	if err := json.Unmarshal(frame, event); err != nil {
		return nil, err
	}
	if event.Kind == "" {
		return nil, fmt.Errorf("event missing type")
	}
	return event, nil
}

func (self *Event) DecodeData(data any) error {
	return json.Unmarshal(self.Data, data)
}

// `data` for POST_ADDED is the full post resource

type PostUpdatedEvent struct {
	Id        Id        `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
	ImageUrl  *string   `json:"imageUrl,omitempty"`
	Tags      []*Tag    `json:"tags,omitempty"`
}

type PostDeletedEvent struct {
	Id Id `json:"id"`
}

type PostLikedEvent struct {
	Id      Id   `json:"id"`
	AddLike bool `json:"addLike"`
	UserId  Id   `json:"userId"`
	// human readable, ignored by the merger
	Message string `json:"message,omitempty"`
}

type CommentAddedEvent struct {
	PostId  Id       `json:"postId"`
	Comment *Comment `json:"comment"`
}

type CommentUpdatedEvent struct {
	PostId    Id        `json:"postId"`
	CommentId Id        `json:"commentId"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CommentDeletedEvent struct {
	PostId    Id `json:"postId"`
	CommentId Id `json:"commentId"`
}

type CommentLikedEvent struct {
	PostId    Id   `json:"postId"`
	CommentId Id   `json:"commentId"`
	AddLike   bool `json:"addLike"`
	UserId    Id   `json:"userId"`
}
