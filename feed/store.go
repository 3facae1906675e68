package feed

import (
	"slices"
	"sync"
	"time"
)

// (version)
type ChangeFunction func(version uint64)

// Store is the single authoritative in-memory collection of posts
// (with nested comments) for the session.
//
// Three mutation sources funnel through it: user-initiated optimistic
// actions, REST-response confirmations, and realtime channel events.
// Every operation reads the latest committed collection and produces the
// next committed collection by cloning exactly what it changes. Committed
// values are never mutated in place, so snapshots handed to readers stay
// valid forever and derived views can key their caches on `Version`.
//
// Operations that target a missing post or comment are treated as races
// with deletion, not errors. They return without changing anything.
type Store struct {
	currentUserId Id

	stateLock sync.Mutex
	posts     []*Post
	version   uint64

	postsUpdate     *Monitor
	changeCallbacks *CallbackList[ChangeFunction]
}

func NewStore(currentUserId Id) *Store {
	return &Store{
		currentUserId:   currentUserId,
		posts:           []*Post{},
		postsUpdate:     NewMonitor(),
		changeCallbacks: NewCallbackList[ChangeFunction](),
	}
}

func (self *Store) CurrentUserId() Id {
	return self.currentUserId
}

// closed and replaced on every commit
func (self *Store) PostsUpdate() *Monitor {
	return self.postsUpdate
}

func (self *Store) AddChangeCallback(changeCallback ChangeFunction) func() {
	return self.changeCallbacks.Add(changeCallback)
}

func (self *Store) Version() uint64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.version
}

// the returned values are committed state. Callers must treat them
// as read only.
func (self *Store) Posts() []*Post {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.posts
}

func (self *Store) Post(postId Id) *Post {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if i := self.postIndex(postId); 0 <= i {
		return self.posts[i]
	}
	return nil
}

func (self *Store) HasPost(postId Id) bool {
	return self.Post(postId) != nil
}

func (self *Store) HasComment(postId Id, commentId Id) bool {
	post := self.Post(postId)
	return post != nil && post.Comment(commentId) != nil
}

// install a REST snapshot, replacing the current collection
func (self *Store) SetPosts(posts []*Post) {
	self.stateLock.Lock()
	version := self.commit(slices.Clone(posts))
	self.stateLock.Unlock()
	self.announce(version)
}

// install or replace a single post fetched via REST
func (self *Store) SetPost(post *Post) {
	self.stateLock.Lock()
	var nextPosts []*Post
	if i := self.postIndex(post.Id); 0 <= i {
		nextPosts = slices.Clone(self.posts)
		nextPosts[i] = post
	} else {
		nextPosts = append([]*Post{post}, self.posts...)
	}
	version := self.commit(nextPosts)
	self.stateLock.Unlock()
	self.announce(version)
}

// prepends. De-duplication by id is the caller's responsibility
// (see Merger).
func (self *Store) CreatePost(post *Post) {
	self.stateLock.Lock()
	nextPosts := append([]*Post{post}, self.posts...)
	version := self.commit(nextPosts)
	self.stateLock.Unlock()
	self.announce(version)
}

type PostPatch struct {
	Title     string
	Body      string
	UpdatedAt time.Time
	// nil leaves the field unchanged
	ImageUrl *string
	// nil leaves the field unchanged
	Tags []*Tag
}

func (self *Store) UpdatePost(postId Id, patch *PostPatch) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPost := self.posts[i].Copy()
	nextPost.Title = patch.Title
	nextPost.Body = patch.Body
	nextPost.UpdatedAt = patch.UpdatedAt
	if patch.ImageUrl != nil {
		nextPost.ImageUrl = *patch.ImageUrl
	}
	if patch.Tags != nil {
		nextPost.Tags = SortTags(patch.Tags)
	}
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) DeletePost(postId Id) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPosts := slices.Clone(self.posts)
	nextPosts = slices.Delete(nextPosts, i, i+1)
	version := self.commit(nextPosts)
	self.stateLock.Unlock()
	self.announce(version)
}

// the count always moves by the event's implied delta (floored at zero).
// the personal flag only moves when the acting user is the local viewer,
// since a broadcast like from another user must not flip it.
func (self *Store) TogglePostLike(postId Id, addLike bool, actingUserId Id) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPost := self.posts[i].Copy()
	nextPost.LikeCount = nextLikeCount(nextPost.LikeCount, addLike)
	if actingUserId == self.currentUserId {
		nextPost.LikedByMe = addLike
	}
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

// prepends to the post's comment collection. De-duplication by id is
// the caller's responsibility (see Merger).
func (self *Store) CreateComment(postId Id, comment *Comment) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPost := self.posts[i].Copy()
	nextPost.Comments = append([]*Comment{comment}, self.posts[i].Comments...)
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

type CommentPatch struct {
	Message   string
	UpdatedAt time.Time
}

func (self *Store) UpdateComment(postId Id, commentId Id, patch *CommentPatch) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	j := commentIndex(self.posts[i].Comments, commentId)
	if j < 0 {
		self.stateLock.Unlock()
		return
	}
	nextComment := self.posts[i].Comments[j].Copy()
	nextComment.Message = patch.Message
	nextComment.UpdatedAt = patch.UpdatedAt
	nextPost := self.posts[i].Copy()
	nextPost.Comments[j] = nextComment
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) DeleteComment(postId Id, commentId Id) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	j := commentIndex(self.posts[i].Comments, commentId)
	if j < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPost := self.posts[i].Copy()
	nextPost.Comments = slices.Delete(nextPost.Comments, j, j+1)
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) ToggleCommentLike(postId Id, commentId Id, addLike bool, actingUserId Id) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	j := commentIndex(self.posts[i].Comments, commentId)
	if j < 0 {
		self.stateLock.Unlock()
		return
	}
	nextComment := self.posts[i].Comments[j].Copy()
	nextComment.LikeCount = nextLikeCount(nextComment.LikeCount, addLike)
	if actingUserId == self.currentUserId {
		nextComment.LikedByMe = addLike
	}
	nextPost := self.posts[i].Copy()
	nextPost.Comments[j] = nextComment
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

// optimistic placeholders

func NewPendingPost(title string, body string, user *User, tags []*Tag) *Post {
	now := time.Now().UTC()
	return &Post{
		Id:        NewId(),
		Title:     title,
		Body:      body,
		User:      user,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      SortTags(tags),
		Comments:  []*Comment{},
		Pending:   true,
	}
}

func NewPendingComment(message string, parentId *Id, user *User) *Comment {
	now := time.Now().UTC()
	return &Comment{
		Id:        NewId(),
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
		ParentId:  parentId,
		User:      user,
		Pending:   true,
	}
}

// swap a pending placeholder for the confirmed entity.
// if the confirmed id is already present (the broadcast echo won the race),
// the placeholder is simply removed.
func (self *Store) ConfirmPost(pendingId Id, confirmed *Post) {
	self.stateLock.Lock()
	i := self.postIndex(pendingId)
	if i < 0 {
		if self.postIndex(confirmed.Id) < 0 {
			// neither the placeholder nor the echo arrived. Treat as a create
			nextPosts := append([]*Post{confirmed}, self.posts...)
			version := self.commit(nextPosts)
			self.stateLock.Unlock()
			self.announce(version)
			return
		}
		self.stateLock.Unlock()
		return
	}
	nextPosts := slices.Clone(self.posts)
	if self.postIndex(confirmed.Id) < 0 {
		nextPosts[i] = confirmed
	} else {
		nextPosts = slices.Delete(nextPosts, i, i+1)
	}
	version := self.commit(nextPosts)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) RollbackPost(pendingId Id) {
	self.DeletePost(pendingId)
}

func (self *Store) ConfirmComment(postId Id, pendingId Id, confirmed *Comment) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	comments := self.posts[i].Comments
	j := commentIndex(comments, pendingId)
	nextPost := self.posts[i].Copy()
	if j < 0 {
		if commentIndex(comments, confirmed.Id) < 0 {
			// neither the placeholder nor the echo arrived. Treat as a create
			nextPost.Comments = append([]*Comment{confirmed}, comments...)
		} else {
			self.stateLock.Unlock()
			return
		}
	} else if commentIndex(comments, confirmed.Id) < 0 {
		nextPost.Comments[j] = confirmed
	} else {
		nextPost.Comments = slices.Delete(nextPost.Comments, j, j+1)
	}
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) RollbackComment(postId Id, pendingId Id) {
	self.DeleteComment(postId, pendingId)
}

// exact like-state restore for rollback paths. The inverse of a toggle
// is not exact because the count clamps at zero.
func (self *Store) SetPostLike(postId Id, likeCount int, likedByMe bool) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	nextPost := self.posts[i].Copy()
	nextPost.LikeCount = likeCount
	nextPost.LikedByMe = likedByMe
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

func (self *Store) SetCommentLike(postId Id, commentId Id, likeCount int, likedByMe bool) {
	self.stateLock.Lock()
	i := self.postIndex(postId)
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	j := commentIndex(self.posts[i].Comments, commentId)
	if j < 0 {
		self.stateLock.Unlock()
		return
	}
	nextComment := self.posts[i].Comments[j].Copy()
	nextComment.LikeCount = likeCount
	nextComment.LikedByMe = likedByMe
	nextPost := self.posts[i].Copy()
	nextPost.Comments[j] = nextComment
	version := self.replace(i, nextPost)
	self.stateLock.Unlock()
	self.announce(version)
}

// must be called with the state lock held
func (self *Store) postIndex(postId Id) int {
	return slices.IndexFunc(self.posts, func(post *Post) bool {
		return post.Id == postId
	})
}

func commentIndex(comments []*Comment, commentId Id) int {
	return slices.IndexFunc(comments, func(comment *Comment) bool {
		return comment.Id == commentId
	})
}

func nextLikeCount(likeCount int, addLike bool) int {
	if addLike {
		return likeCount + 1
	}
	return max(0, likeCount-1)
}

// must be called with the state lock held
func (self *Store) replace(i int, nextPost *Post) uint64 {
	nextPosts := slices.Clone(self.posts)
	nextPosts[i] = nextPost
	return self.commit(nextPosts)
}

// must be called with the state lock held
func (self *Store) commit(nextPosts []*Post) uint64 {
	self.posts = nextPosts
	self.version += 1
	return self.version
}

func (self *Store) announce(version uint64) {
	self.postsUpdate.NotifyAll()
	for _, changeCallback := range self.changeCallbacks.Get() {
		HandleError(func() {
			changeCallback(version)
		})
	}
}
