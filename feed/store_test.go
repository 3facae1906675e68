package feed

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestToggleCommentLikeRoundTrip(t *testing.T) {
	viewerId := NewId()
	store := NewStore(viewerId)

	c1 := testComment(nil, "c1")
	c1.LikeCount = 3
	post := testPost(c1)
	store.SetPosts([]*Post{post})

	store.ToggleCommentLike(post.Id, c1.Id, true, viewerId)
	liked := store.Post(post.Id).Comment(c1.Id)
	assert.Equal(t, 4, liked.LikeCount)
	assert.Equal(t, true, liked.LikedByMe)

	store.ToggleCommentLike(post.Id, c1.Id, false, viewerId)
	unliked := store.Post(post.Id).Comment(c1.Id)
	assert.Equal(t, c1.LikeCount, unliked.LikeCount)
	assert.Equal(t, c1.LikedByMe, unliked.LikedByMe)
}

func TestTogglePostLikeOtherUser(t *testing.T) {
	viewerId := NewId()
	store := NewStore(viewerId)

	post := testPost()
	store.SetPosts([]*Post{post})

	// a like broadcast from a different user moves the count
	// but not the viewer's personal flag
	otherUserId := NewId()
	store.TogglePostLike(post.Id, true, otherUserId)

	liked := store.Post(post.Id)
	assert.Equal(t, 1, liked.LikeCount)
	assert.Equal(t, false, liked.LikedByMe)
}

func TestLikeCountFloor(t *testing.T) {
	store := NewStore(NewId())

	post := testPost()
	store.SetPosts([]*Post{post})

	store.TogglePostLike(post.Id, false, NewId())
	assert.Equal(t, 0, store.Post(post.Id).LikeCount)
}

func TestDeleteMissingPostNoop(t *testing.T) {
	store := NewStore(NewId())

	post := testPost()
	store.SetPosts([]*Post{post})
	version := store.Version()
	posts := store.Posts()

	store.DeletePost(NewId())

	assert.Equal(t, version, store.Version())
	assert.Equal(t, posts, store.Posts())
}

func TestMutateMissingNoop(t *testing.T) {
	store := NewStore(NewId())

	c1 := testComment(nil, "c1")
	post := testPost(c1)
	store.SetPosts([]*Post{post})
	version := store.Version()

	missingId := NewId()
	store.UpdatePost(missingId, &PostPatch{Title: "x", Body: "y"})
	store.TogglePostLike(missingId, true, NewId())
	store.CreateComment(missingId, testComment(nil, "lost"))
	store.UpdateComment(post.Id, missingId, &CommentPatch{Message: "x"})
	store.UpdateComment(missingId, c1.Id, &CommentPatch{Message: "x"})
	store.DeleteComment(post.Id, missingId)
	store.ToggleCommentLike(post.Id, missingId, true, NewId())
	store.SetPostLike(missingId, 1, true)
	store.SetCommentLike(post.Id, missingId, 1, true)

	assert.Equal(t, version, store.Version())
	assert.Equal(t, "c1", store.Post(post.Id).Comment(c1.Id).Message)
}

func TestFunctionalUpdates(t *testing.T) {
	store := NewStore(NewId())

	c1 := testComment(nil, "c1")
	post := testPost(c1)
	store.SetPosts([]*Post{post})

	before := store.Post(post.Id)
	beforeComments := before.Comments

	store.UpdatePost(post.Id, &PostPatch{
		Title:     "next title",
		Body:      "next body",
		UpdatedAt: time.Now().UTC(),
	})
	store.UpdateComment(post.Id, c1.Id, &CommentPatch{
		Message:   "next message",
		UpdatedAt: time.Now().UTC(),
	})

	// the committed snapshot handed out earlier is untouched
	assert.Equal(t, "title", before.Title)
	assert.Equal(t, "c1", beforeComments[0].Message)

	after := store.Post(post.Id)
	assert.Equal(t, "next title", after.Title)
	assert.Equal(t, "next message", after.Comment(c1.Id).Message)
}

func TestCreatePostPrepends(t *testing.T) {
	store := NewStore(NewId())

	first := testPost()
	second := testPost()
	store.SetPosts([]*Post{first})
	store.CreatePost(second)

	posts := store.Posts()
	assert.Equal(t, 2, len(posts))
	assert.Equal(t, second.Id, posts[0].Id)
	assert.Equal(t, first.Id, posts[1].Id)
}

func TestConfirmComment(t *testing.T) {
	viewer := testUser()
	store := NewStore(viewer.Id)

	post := testPost()
	store.SetPosts([]*Post{post})

	pending := NewPendingComment("hi", nil, viewer)
	store.CreateComment(post.Id, pending)
	assert.Equal(t, true, store.Post(post.Id).Comment(pending.Id).Pending)

	confirmed := testComment(nil, "hi")
	confirmed.User = viewer
	store.ConfirmComment(post.Id, pending.Id, confirmed)

	comments := store.Post(post.Id).Comments
	assert.Equal(t, 1, len(comments))
	assert.Equal(t, confirmed.Id, comments[0].Id)
	assert.Equal(t, false, comments[0].Pending)
}

func TestConfirmCommentAfterEcho(t *testing.T) {
	viewer := testUser()
	store := NewStore(viewer.Id)

	post := testPost()
	store.SetPosts([]*Post{post})

	pending := NewPendingComment("hi", nil, viewer)
	store.CreateComment(post.Id, pending)

	// the broadcast echo with the server-assigned id lands first
	confirmed := testComment(nil, "hi")
	confirmed.User = viewer
	store.CreateComment(post.Id, confirmed)
	assert.Equal(t, 2, len(store.Post(post.Id).Comments))

	// the REST confirmation then collapses the placeholder
	store.ConfirmComment(post.Id, pending.Id, confirmed)

	comments := store.Post(post.Id).Comments
	assert.Equal(t, 1, len(comments))
	assert.Equal(t, confirmed.Id, comments[0].Id)
}

func TestConfirmPost(t *testing.T) {
	viewer := testUser()
	store := NewStore(viewer.Id)

	pending := NewPendingPost("title", "body", viewer, nil)
	store.CreatePost(pending)

	confirmed := testPost()
	store.ConfirmPost(pending.Id, confirmed)

	posts := store.Posts()
	assert.Equal(t, 1, len(posts))
	assert.Equal(t, confirmed.Id, posts[0].Id)
}

func TestRollbackComment(t *testing.T) {
	viewer := testUser()
	store := NewStore(viewer.Id)

	post := testPost()
	store.SetPosts([]*Post{post})

	pending := NewPendingComment("hi", nil, viewer)
	store.CreateComment(post.Id, pending)
	store.RollbackComment(post.Id, pending.Id)

	assert.Equal(t, 0, len(store.Post(post.Id).Comments))
}

func TestChangeCallbacks(t *testing.T) {
	store := NewStore(NewId())

	versions := []uint64{}
	remove := store.AddChangeCallback(func(version uint64) {
		versions = append(versions, version)
	})

	store.SetPosts([]*Post{testPost()})
	store.SetPosts([]*Post{})
	remove()
	store.SetPosts([]*Post{testPost()})

	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestPostsUpdateMonitor(t *testing.T) {
	store := NewStore(NewId())

	notify := store.PostsUpdate().NotifyChannel()
	store.SetPosts([]*Post{testPost()})

	select {
	case <-notify:
	default:
		t.Fatal("expected notify")
	}
}
