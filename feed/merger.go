package feed

import (
	"github.com/golang/glog"
)

// Merger reconciles the realtime channel's event stream against the
// store. Events apply exactly once, in arrival order. Additions that
// duplicate an entity already present (from the REST snapshot or this
// client's own optimistic mutation echoed back) insert nothing but still
// re-apply as an update, so the collection length never double counts.
//
// A malformed or unrecognized frame is logged and discarded. Apply never
// panics outward and never halts processing of subsequent frames.
type Merger struct {
	store *Store

	log LogFunction
}

func NewMerger(store *Store) *Merger {
	return &Merger{
		store: store,
		log:   LogFn(LogLevelDebug, "[m]"),
	}
}

func (self *Merger) Apply(frame []byte) {
	HandleError(func() {
		self.apply(frame)
	})
}

func (self *Merger) apply(frame []byte) {
	event, err := ParseEvent(frame)
	if err != nil {
		glog.Infof("[m]discard frame = %s\n", err)
		return
	}

	switch event.Kind {
	case EventKindPostAdded:
		post := &Post{}
		if err := event.DecodeData(post); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		if self.store.HasPost(post.Id) {
			// echo of an entity already present. Re-apply as an update
			imageUrl := post.ImageUrl
			self.store.UpdatePost(post.Id, &PostPatch{
				Title:     post.Title,
				Body:      post.Body,
				UpdatedAt: post.UpdatedAt,
				ImageUrl:  &imageUrl,
				Tags:      post.Tags,
			})
		} else {
			if post.Comments == nil {
				post.Comments = []*Comment{}
			}
			self.store.CreatePost(post)
		}
		self.log("%s %s", event.Kind, post.Id)
	case EventKindPostUpdated:
		postUpdated := &PostUpdatedEvent{}
		if err := event.DecodeData(postUpdated); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.UpdatePost(postUpdated.Id, &PostPatch{
			Title:     postUpdated.Title,
			Body:      postUpdated.Body,
			UpdatedAt: postUpdated.UpdatedAt,
			ImageUrl:  postUpdated.ImageUrl,
			Tags:      postUpdated.Tags,
		})
		self.log("%s %s", event.Kind, postUpdated.Id)
	case EventKindPostDeleted:
		postDeleted := &PostDeletedEvent{}
		if err := event.DecodeData(postDeleted); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.DeletePost(postDeleted.Id)
		self.log("%s %s", event.Kind, postDeleted.Id)
	case EventKindPostLiked:
		postLiked := &PostLikedEvent{}
		if err := event.DecodeData(postLiked); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.TogglePostLike(postLiked.Id, postLiked.AddLike, postLiked.UserId)
		self.log("%s %s", event.Kind, postLiked.Id)
	case EventKindCommentAdded:
		commentAdded := &CommentAddedEvent{}
		if err := event.DecodeData(commentAdded); err != nil || commentAdded.Comment == nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		comment := commentAdded.Comment
		if self.store.HasComment(commentAdded.PostId, comment.Id) {
			self.store.UpdateComment(commentAdded.PostId, comment.Id, &CommentPatch{
				Message:   comment.Message,
				UpdatedAt: comment.UpdatedAt,
			})
		} else {
			self.store.CreateComment(commentAdded.PostId, comment)
		}
		self.log("%s %s/%s", event.Kind, commentAdded.PostId, comment.Id)
	case EventKindCommentUpdated:
		commentUpdated := &CommentUpdatedEvent{}
		if err := event.DecodeData(commentUpdated); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.UpdateComment(commentUpdated.PostId, commentUpdated.CommentId, &CommentPatch{
			Message:   commentUpdated.Message,
			UpdatedAt: commentUpdated.UpdatedAt,
		})
		self.log("%s %s/%s", event.Kind, commentUpdated.PostId, commentUpdated.CommentId)
	case EventKindCommentDeleted:
		commentDeleted := &CommentDeletedEvent{}
		if err := event.DecodeData(commentDeleted); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.DeleteComment(commentDeleted.PostId, commentDeleted.CommentId)
		self.log("%s %s/%s", event.Kind, commentDeleted.PostId, commentDeleted.CommentId)
	case EventKindCommentLiked:
		commentLiked := &CommentLikedEvent{}
		if err := event.DecodeData(commentLiked); err != nil {
			glog.Infof("[m]discard %s = %s\n", event.Kind, err)
			return
		}
		self.store.ToggleCommentLike(
			commentLiked.PostId,
			commentLiked.CommentId,
			commentLiked.AddLike,
			commentLiked.UserId,
		)
		self.log("%s %s/%s", event.Kind, commentLiked.PostId, commentLiked.CommentId)
	default:
		glog.Infof("[m]discard unknown event type %s\n", event.Kind)
	}
}
