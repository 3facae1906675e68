package feed

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func testUser() *User {
	return &User{
		Id:   NewId(),
		Name: "test",
	}
}

func testComment(parentId *Id, message string) *Comment {
	now := time.Now().UTC()
	return &Comment{
		Id:        NewId(),
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
		ParentId:  parentId,
		User:      testUser(),
	}
}

func testPost(comments ...*Comment) *Post {
	now := time.Now().UTC()
	return &Post{
		Id:        NewId(),
		Title:     "title",
		Body:      "body",
		User:      testUser(),
		CreatedAt: now,
		UpdatedAt: now,
		Comments:  comments,
	}
}

func TestCommentIndexReplies(t *testing.T) {
	viewerId := NewId()
	store := NewStore(viewerId)

	c1 := testComment(nil, "c1")
	c2 := testComment(&c1.Id, "c2")
	c3 := testComment(nil, "c3")
	post := testPost(c1, c2, c3)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)

	rootComments := index.RootComments()
	assert.Equal(t, 2, len(rootComments))
	assert.Equal(t, c1.Id, rootComments[0].Id)
	assert.Equal(t, c3.Id, rootComments[1].Id)

	replies := index.Replies(&c1.Id)
	assert.Equal(t, 1, len(replies))
	assert.Equal(t, c2.Id, replies[0].Id)

	// absent key yields an empty sequence, never nil
	assert.Equal(t, 0, len(index.Replies(&c3.Id)))
	missingId := NewId()
	assert.Equal(t, 0, len(index.Replies(&missingId)))
}

func TestCommentIndexDuplicateIds(t *testing.T) {
	store := NewStore(NewId())

	c1 := testComment(nil, "c1")
	duplicate := c1.Copy()
	post := testPost(c1, duplicate)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)

	// dedup by id before grouping
	assert.Equal(t, 1, len(index.RootComments()))
}

func TestCommentIndexOrphans(t *testing.T) {
	store := NewStore(NewId())

	missingParentId := NewId()
	orphan := testComment(&missingParentId, "orphan")
	c1 := testComment(nil, "c1")
	post := testPost(c1, orphan)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)

	// the orphan groups under the dangling parent id, out of the root walk
	assert.Equal(t, 1, len(index.RootComments()))
	orphans := index.Replies(&missingParentId)
	assert.Equal(t, 1, len(orphans))
	assert.Equal(t, orphan.Id, orphans[0].Id)

	visited := []Id{}
	index.WalkReplies(nil, func(comment *Comment, depth int) {
		visited = append(visited, comment.Id)
	})
	assert.Equal(t, []Id{c1.Id}, visited)
}

func TestCommentIndexRebuildOnVersionChange(t *testing.T) {
	store := NewStore(NewId())

	c1 := testComment(nil, "c1")
	post := testPost(c1)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)
	assert.Equal(t, 1, len(index.RootComments()))

	c2 := testComment(&c1.Id, "c2")
	store.CreateComment(post.Id, c2)

	replies := index.Replies(&c1.Id)
	assert.Equal(t, 1, len(replies))
	assert.Equal(t, c2.Id, replies[0].Id)
}

func TestWalkReplies(t *testing.T) {
	store := NewStore(NewId())

	c1 := testComment(nil, "c1")
	c2 := testComment(&c1.Id, "c2")
	c3 := testComment(&c2.Id, "c3")
	c4 := testComment(nil, "c4")
	post := testPost(c1, c2, c3, c4)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)

	visited := []Id{}
	depths := []int{}
	index.WalkReplies(nil, func(comment *Comment, depth int) {
		visited = append(visited, comment.Id)
		depths = append(depths, depth)
	})
	assert.Equal(t, []Id{c1.Id, c2.Id, c3.Id, c4.Id}, visited)
	assert.Equal(t, []int{0, 1, 2, 0}, depths)
}

func TestWalkRepliesCycle(t *testing.T) {
	store := NewStore(NewId())

	// a's parent is b and b's parent is a. The walk must terminate
	aId := NewId()
	bId := NewId()
	a := testComment(&bId, "a")
	a.Id = aId
	b := testComment(&aId, "b")
	b.Id = bId
	post := testPost(a, b)
	store.SetPosts([]*Post{post})

	index := NewCommentIndex(store, post.Id)

	visited := []Id{}
	index.WalkReplies(&bId, func(comment *Comment, depth int) {
		visited = append(visited, comment.Id)
	})
	assert.Equal(t, []Id{aId, bId}, visited)
}
