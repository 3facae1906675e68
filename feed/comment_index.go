package feed

import (
	"sync"

	"golang.org/x/exp/maps"
)

// one-pass stable grouping of a flat comment collection by parent id.
// root comments group under `RootId`. A comment whose parent id points at
// a comment that does not exist still groups under that id; the bucket is
// simply never reached by a root-level walk. Duplicate ids keep the first
// occurrence only.
func buildCommentIndex(comments []*Comment) map[Id][]*Comment {
	replies := map[Id][]*Comment{}
	seen := map[Id]bool{}
	for _, comment := range comments {
		if seen[comment.Id] {
			continue
		}
		seen[comment.Id] = true
		parentId := RootId
		if comment.ParentId != nil {
			parentId = *comment.ParentId
		}
		replies[parentId] = append(replies[parentId], comment)
	}
	return replies
}

// (comment, depth)
type VisitFunction func(comment *Comment, depth int)

// CommentIndex is a derived view of one post's comment collection,
// mapping parent id to the ordered list of child comments. It is never a
// second source of truth: the index caches the store version it was built
// from and rebuilds whenever the store has moved on.
type CommentIndex struct {
	store  *Store
	postId Id

	mutex sync.Mutex
	// version the cached grouping was built from.
	// zero means never built, which is safe because the store's first
	// commit is version 1.
	builtVersion uint64
	replies      map[Id][]*Comment
}

func NewCommentIndex(store *Store, postId Id) *CommentIndex {
	return &CommentIndex{
		store:  store,
		postId: postId,
	}
}

// absent keys yield an empty slice, never nil ambiguity and never an error
func (self *CommentIndex) Replies(parentId *Id) []*Comment {
	key := RootId
	if parentId != nil {
		key = *parentId
	}
	replies := self.grouped()[key]
	if replies == nil {
		return []*Comment{}
	}
	return replies
}

func (self *CommentIndex) RootComments() []*Comment {
	return self.Replies(nil)
}

func (self *CommentIndex) ParentIds() []Id {
	return maps.Keys(self.grouped())
}

// depth-first walk of the reply tree under `parentId` (nil for the
// whole forest). Each comment is visited at most once, so a cyclic
// parent chain terminates instead of recursing forever.
func (self *CommentIndex) WalkReplies(parentId *Id, visit VisitFunction) {
	grouped := self.grouped()
	visited := map[Id]bool{}

	var walk func(key Id, depth int)
	walk = func(key Id, depth int) {
		for _, comment := range grouped[key] {
			if visited[comment.Id] {
				continue
			}
			visited[comment.Id] = true
			visit(comment, depth)
			walk(comment.Id, depth+1)
		}
	}

	key := RootId
	if parentId != nil {
		key = *parentId
	}
	walk(key, 0)
}

func (self *CommentIndex) grouped() map[Id][]*Comment {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	version := self.store.Version()
	if self.replies != nil && self.builtVersion == version {
		return self.replies
	}

	var comments []*Comment
	if post := self.store.Post(self.postId); post != nil {
		comments = post.Comments
	}
	self.replies = buildCommentIndex(comments)
	self.builtVersion = version
	return self.replies
}
