package feed

import (
	"context"
)

// FeedClient wires the store, the REST client, the merger, and the
// channel transport into one session-scoped unit. It also carries the
// standardized optimistic discipline for user-initiated mutations:
//
//   - create: optimistic pending placeholder, then confirm-by-id
//     replacement from the REST response (or rollback on failure)
//   - update/delete/like: optimistic apply, restored from the prior
//     committed snapshot on REST failure
//
// A rolled-back delete is re-created at the head of the collection; the
// original position is not restored.
type FeedClient struct {
	ctx    context.Context
	cancel context.CancelFunc

	user *User

	store     *Store
	api       *FeedApi
	merger    *Merger
	transport *ChannelTransport
}

func NewFeedClientWithDefaults(
	ctx context.Context,
	apiUrl string,
	channelUrl string,
	user *User,
) *FeedClient {
	return NewFeedClient(ctx, apiUrl, channelUrl, user, DefaultChannelTransportSettings())
}

func NewFeedClient(
	ctx context.Context,
	apiUrl string,
	channelUrl string,
	user *User,
	transportSettings *ChannelTransportSettings,
) *FeedClient {
	cancelCtx, cancel := context.WithCancel(ctx)

	store := NewStore(user.Id)
	api := NewFeedApiWithContext(cancelCtx, apiUrl)
	api.SetSessionUserId(user.Id)
	merger := NewMerger(store)
	transport := NewChannelTransport(cancelCtx, channelUrl, merger, transportSettings)

	return &FeedClient{
		ctx:       cancelCtx,
		cancel:    cancel,
		user:      user,
		store:     store,
		api:       api,
		merger:    merger,
		transport: transport,
	}
}

func (self *FeedClient) Store() *Store {
	return self.store
}

func (self *FeedClient) Api() *FeedApi {
	return self.api
}

func (self *FeedClient) Transport() *ChannelTransport {
	return self.transport
}

func (self *FeedClient) User() *User {
	return self.user
}

// install the full REST snapshot
func (self *FeedClient) LoadPosts() error {
	posts, err := self.api.GetPostsSync()
	if err != nil {
		return err
	}
	self.store.SetPosts(posts)
	return nil
}

func (self *FeedClient) LoadPost(postId Id) error {
	post, err := self.api.GetPostSync(postId)
	if err != nil {
		return err
	}
	self.store.SetPost(post)
	return nil
}

func (self *FeedClient) AddPost(createPost *CreatePostArgs) (*Post, error) {
	createPost.UserId = self.user.Id

	tags := make([]*Tag, 0, len(createPost.Tags))
	for _, name := range createPost.Tags {
		tags = append(tags, &Tag{Name: name})
	}
	pending := NewPendingPost(createPost.Title, createPost.Body, self.user, tags)
	self.store.CreatePost(pending)

	confirmed, err := self.api.CreatePostSync(createPost)
	if err != nil {
		self.store.RollbackPost(pending.Id)
		return nil, err
	}
	self.store.ConfirmPost(pending.Id, confirmed)
	return confirmed, nil
}

func (self *FeedClient) EditPost(postId Id, updatePost *CreatePostArgs) error {
	updatePost.UserId = self.user.Id

	prior := self.store.Post(postId)

	tags := make([]*Tag, 0, len(updatePost.Tags))
	for _, name := range updatePost.Tags {
		tags = append(tags, &Tag{Name: name})
	}
	self.store.UpdatePost(postId, &PostPatch{
		Title:     updatePost.Title,
		Body:      updatePost.Body,
		UpdatedAt: timeNow(),
		Tags:      tags,
	})

	if _, err := self.api.UpdatePostSync(postId, updatePost); err != nil {
		if prior != nil {
			priorImageUrl := prior.ImageUrl
			self.store.UpdatePost(postId, &PostPatch{
				Title:     prior.Title,
				Body:      prior.Body,
				UpdatedAt: prior.UpdatedAt,
				ImageUrl:  &priorImageUrl,
				// non-nil even when the prior post had no tags, so the
				// optimistic tags do not outlive the rollback
				Tags: append([]*Tag{}, prior.Tags...),
			})
		}
		return err
	}
	return nil
}

func (self *FeedClient) RemovePost(postId Id) error {
	prior := self.store.Post(postId)
	self.store.DeletePost(postId)

	if _, err := self.api.RemovePostSync(postId); err != nil {
		if prior != nil {
			self.store.CreatePost(prior)
		}
		return err
	}
	return nil
}

func (self *FeedClient) TogglePostLike(postId Id, addLike bool) error {
	prior := self.store.Post(postId)
	self.store.TogglePostLike(postId, addLike, self.user.Id)

	if _, err := self.api.TogglePostLikeSync(postId); err != nil {
		// restore the prior snapshot. The inverse toggle is not exact
		// when the count was clamped at zero
		if prior != nil {
			self.store.SetPostLike(postId, prior.LikeCount, prior.LikedByMe)
		}
		return err
	}
	return nil
}

func (self *FeedClient) AddComment(postId Id, message string, parentId *Id) (*Comment, error) {
	pending := NewPendingComment(message, parentId, self.user)
	self.store.CreateComment(postId, pending)

	confirmed, err := self.api.CreateCommentSync(postId, &CreateCommentArgs{
		Message:  message,
		ParentId: parentId,
	})
	if err != nil {
		self.store.RollbackComment(postId, pending.Id)
		return nil, err
	}
	self.store.ConfirmComment(postId, pending.Id, confirmed)
	return confirmed, nil
}

func (self *FeedClient) EditComment(postId Id, commentId Id, message string) error {
	var prior *Comment
	if post := self.store.Post(postId); post != nil {
		prior = post.Comment(commentId)
	}
	self.store.UpdateComment(postId, commentId, &CommentPatch{
		Message:   message,
		UpdatedAt: timeNow(),
	})

	if _, err := self.api.UpdateCommentSync(postId, commentId, &UpdateCommentArgs{
		Message: message,
	}); err != nil {
		if prior != nil {
			self.store.UpdateComment(postId, commentId, &CommentPatch{
				Message:   prior.Message,
				UpdatedAt: prior.UpdatedAt,
			})
		}
		return err
	}
	return nil
}

func (self *FeedClient) RemoveComment(postId Id, commentId Id) error {
	var prior *Comment
	if post := self.store.Post(postId); post != nil {
		prior = post.Comment(commentId)
	}
	self.store.DeleteComment(postId, commentId)

	if _, err := self.api.RemoveCommentSync(postId, commentId); err != nil {
		if prior != nil {
			self.store.CreateComment(postId, prior)
		}
		return err
	}
	return nil
}

func (self *FeedClient) ToggleCommentLike(postId Id, commentId Id, addLike bool) error {
	var prior *Comment
	if post := self.store.Post(postId); post != nil {
		prior = post.Comment(commentId)
	}
	self.store.ToggleCommentLike(postId, commentId, addLike, self.user.Id)

	if _, err := self.api.ToggleCommentLikeSync(postId, commentId); err != nil {
		if prior != nil {
			self.store.SetCommentLike(postId, commentId, prior.LikeCount, prior.LikedByMe)
		}
		return err
	}
	return nil
}

func (self *FeedClient) Close() {
	self.cancel()
	self.api.Close()
	self.transport.Close()
}
