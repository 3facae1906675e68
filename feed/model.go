package feed

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// key for comments with no parent
// the backend never assigns the zero uuid, so this cannot collide
var RootId = Id{}

// comparable
type Id [16]byte

// ids are assigned by the backend. `NewId` is used only to mint
// placeholder ids for pending optimistic entities.
func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func RequireParseId(idStr string) Id {
	id, err := parseUuid(idStr)
	if err != nil {
		panic(err)
	}
	return id
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return encodeUuid(self)
}

func (self *Id) MarshalJSON() ([]byte, error) {
	var buf [16]byte
	copy(buf[0:16], self[0:16])
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(encodeUuid(buf))
	buff.WriteByte('"')
	b := buff.Bytes()
	return b, nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) != 38 {
		return fmt.Errorf("invalid length for UUID: %v", len(src))
	}
	buf, err := parseUuid(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

// author reference embedded in posts and comments
type User struct {
	Id   Id     `json:"id"`
	Name string `json:"name"`
}

type Comment struct {
	Id        Id        `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	LikeCount int       `json:"likeCount"`
	LikedByMe bool      `json:"likedByMe"`
	// nil for root comments
	ParentId *Id   `json:"parentId"`
	User     *User `json:"user"`

	// true for a local optimistic copy not yet confirmed by the backend
	Pending bool `json:"-"`
}

// shallow clone. The store never mutates a committed comment in place.
func (self *Comment) Copy() *Comment {
	copy := *self
	return &copy
}

func (self *Comment) IsRoot() bool {
	return self.ParentId == nil
}

type Tag struct {
	Id   Id     `json:"id"`
	Name string `json:"name"`
}

// stable order by name
func SortTags(tags []*Tag) []*Tag {
	sortedTags := slices.Clone(tags)
	slices.SortStableFunc(sortedTags, func(a *Tag, b *Tag) int {
		if a.Name < b.Name {
			return -1
		} else if b.Name < a.Name {
			return 1
		} else {
			return 0
		}
	})
	return sortedTags
}

type Post struct {
	Id        Id         `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	User      *User      `json:"user"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ImageUrl  string     `json:"imageUrl,omitempty"`
	Tags      []*Tag     `json:"tags,omitempty"`
	LikeCount int        `json:"likeCount"`
	LikedByMe bool       `json:"likedByMe"`
	Comments  []*Comment `json:"comments"`

	// true for a local optimistic copy not yet confirmed by the backend
	Pending bool `json:"-"`
}

// clones the post and its comments slice header.
// comment values are shared until one of them is replaced.
func (self *Post) Copy() *Post {
	copy := *self
	copy.Comments = slices.Clone(self.Comments)
	copy.Tags = slices.Clone(self.Tags)
	return &copy
}

func (self *Post) Comment(commentId Id) *Comment {
	for _, comment := range self.Comments {
		if comment.Id == commentId {
			return comment
		}
	}
	return nil
}
