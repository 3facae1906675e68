package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// non-2xx REST responses surface as this typed error.
// the store is never touched on an error path.
type ApiError struct {
	StatusCode int
	Message    string
}

func (self *ApiError) Error() string {
	return fmt.Sprintf("api error (%d): %s", self.StatusCode, self.Message)
}

// FeedApi is the REST collaborator client. One instance per view scope:
// `Close` cancels the context, which guarantees results of in-flight
// requests never reach a callback after the view is gone.
type FeedApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	sessionToken  string
	sessionUserId Id
}

func NewFeedApi(apiUrl string) *FeedApi {
	return NewFeedApiWithContext(context.Background(), apiUrl)
}

func NewFeedApiWithContext(ctx context.Context, apiUrl string) *FeedApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &FeedApi{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
	}
}

// this gets attached to api calls as a bearer token
func (self *FeedApi) SetSessionToken(sessionToken string) {
	self.sessionToken = sessionToken
}

// this gets attached to api calls as the backend's `userId` session cookie
func (self *FeedApi) SetSessionUserId(sessionUserId Id) {
	self.sessionUserId = sessionUserId
}

func (self *FeedApi) SessionUserId() Id {
	return self.sessionUserId
}

func (self *FeedApi) Close() {
	self.cancel()
}

type SignInCallback apiCallback[*SignInResult]

type SignInArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResult struct {
	Id        Id     `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (self *FeedApi) SignIn(signIn *SignInArgs, callback SignInCallback) {
	go postJson(
		self,
		fmt.Sprintf("%s/auth/signIn", self.apiUrl),
		signIn,
		&SignInResult{},
		callback,
	)
}

func (self *FeedApi) SignInSync(signIn *SignInArgs) (*SignInResult, error) {
	return postJson(
		self,
		fmt.Sprintf("%s/auth/signIn", self.apiUrl),
		signIn,
		&SignInResult{},
		NewNoopApiCallback[*SignInResult](),
	)
}

type GetPostsCallback apiCallback[[]*Post]

func (self *FeedApi) GetPosts(callback GetPostsCallback) {
	go get(
		self,
		fmt.Sprintf("%s/posts", self.apiUrl),
		[]*Post{},
		callback,
	)
}

func (self *FeedApi) GetPostsSync() ([]*Post, error) {
	return get(
		self,
		fmt.Sprintf("%s/posts", self.apiUrl),
		[]*Post{},
		NewNoopApiCallback[[]*Post](),
	)
}

type GetPostCallback apiCallback[*Post]

func (self *FeedApi) GetPost(postId Id, callback GetPostCallback) {
	go get(
		self,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		&Post{},
		callback,
	)
}

func (self *FeedApi) GetPostSync(postId Id) (*Post, error) {
	return get(
		self,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		&Post{},
		NewNoopApiCallback[*Post](),
	)
}

type GetTagsCallback apiCallback[[]*Tag]

func (self *FeedApi) GetTags(callback GetTagsCallback) {
	go get(
		self,
		fmt.Sprintf("%s/tags", self.apiUrl),
		[]*Tag{},
		callback,
	)
}

func (self *FeedApi) GetTagsSync() ([]*Tag, error) {
	return get(
		self,
		fmt.Sprintf("%s/tags", self.apiUrl),
		[]*Tag{},
		NewNoopApiCallback[[]*Tag](),
	)
}

type CreatePostCallback apiCallback[*Post]

type CreatePostArgs struct {
	UserId Id
	Title  string
	Body   string
	Tags   []string
	// optional. `Image` is streamed into the multipart body
	ImageName string
	Image     io.Reader
}

func (self *FeedApi) CreatePost(createPost *CreatePostArgs, callback CreatePostCallback) {
	go postMultipart(
		self,
		"POST",
		fmt.Sprintf("%s/posts", self.apiUrl),
		createPost,
		&Post{},
		callback,
	)
}

func (self *FeedApi) CreatePostSync(createPost *CreatePostArgs) (*Post, error) {
	return postMultipart(
		self,
		"POST",
		fmt.Sprintf("%s/posts", self.apiUrl),
		createPost,
		&Post{},
		NewNoopApiCallback[*Post](),
	)
}

type UpdatePostCallback apiCallback[*Post]

func (self *FeedApi) UpdatePost(postId Id, updatePost *CreatePostArgs, callback UpdatePostCallback) {
	go postMultipart(
		self,
		"PUT",
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		updatePost,
		&Post{},
		callback,
	)
}

func (self *FeedApi) UpdatePostSync(postId Id, updatePost *CreatePostArgs) (*Post, error) {
	return postMultipart(
		self,
		"PUT",
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		updatePost,
		&Post{},
		NewNoopApiCallback[*Post](),
	)
}

type RemovePostCallback apiCallback[*RemovePostResult]

type RemovePostResult struct {
	Id Id `json:"id"`
}

func (self *FeedApi) RemovePost(postId Id, callback RemovePostCallback) {
	go del(
		self,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		&RemovePostResult{},
		callback,
	)
}

func (self *FeedApi) RemovePostSync(postId Id) (*RemovePostResult, error) {
	return del(
		self,
		fmt.Sprintf("%s/posts/%s", self.apiUrl, postId),
		&RemovePostResult{},
		NewNoopApiCallback[*RemovePostResult](),
	)
}

type ToggleLikeCallback apiCallback[*ToggleLikeResult]

type ToggleLikeResult struct {
	Id      Id   `json:"id"`
	AddLike bool `json:"addLike"`
}

func (self *FeedApi) TogglePostLike(postId Id, callback ToggleLikeCallback) {
	go postJson(
		self,
		fmt.Sprintf("%s/posts/%s/toggleLike", self.apiUrl, postId),
		nil,
		&ToggleLikeResult{},
		callback,
	)
}

func (self *FeedApi) TogglePostLikeSync(postId Id) (*ToggleLikeResult, error) {
	return postJson(
		self,
		fmt.Sprintf("%s/posts/%s/toggleLike", self.apiUrl, postId),
		nil,
		&ToggleLikeResult{},
		NewNoopApiCallback[*ToggleLikeResult](),
	)
}

type CreateCommentCallback apiCallback[*Comment]

type CreateCommentArgs struct {
	Message  string `json:"message"`
	ParentId *Id    `json:"parentId,omitempty"`
}

func (self *FeedApi) CreateComment(postId Id, createComment *CreateCommentArgs, callback CreateCommentCallback) {
	go postJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments", self.apiUrl, postId),
		createComment,
		&Comment{},
		callback,
	)
}

func (self *FeedApi) CreateCommentSync(postId Id, createComment *CreateCommentArgs) (*Comment, error) {
	return postJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments", self.apiUrl, postId),
		createComment,
		&Comment{},
		NewNoopApiCallback[*Comment](),
	)
}

type UpdateCommentCallback apiCallback[*Comment]

type UpdateCommentArgs struct {
	Message string `json:"message"`
}

func (self *FeedApi) UpdateComment(postId Id, commentId Id, updateComment *UpdateCommentArgs, callback UpdateCommentCallback) {
	go putJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s", self.apiUrl, postId, commentId),
		updateComment,
		&Comment{},
		callback,
	)
}

func (self *FeedApi) UpdateCommentSync(postId Id, commentId Id, updateComment *UpdateCommentArgs) (*Comment, error) {
	return putJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s", self.apiUrl, postId, commentId),
		updateComment,
		&Comment{},
		NewNoopApiCallback[*Comment](),
	)
}

type RemoveCommentCallback apiCallback[*RemoveCommentResult]

type RemoveCommentResult struct {
	Id Id `json:"id"`
}

func (self *FeedApi) RemoveComment(postId Id, commentId Id, callback RemoveCommentCallback) {
	go del(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s", self.apiUrl, postId, commentId),
		&RemoveCommentResult{},
		callback,
	)
}

func (self *FeedApi) RemoveCommentSync(postId Id, commentId Id) (*RemoveCommentResult, error) {
	return del(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s", self.apiUrl, postId, commentId),
		&RemoveCommentResult{},
		NewNoopApiCallback[*RemoveCommentResult](),
	)
}

func (self *FeedApi) ToggleCommentLike(postId Id, commentId Id, callback ToggleLikeCallback) {
	go postJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s/toggleLike", self.apiUrl, postId, commentId),
		nil,
		&ToggleLikeResult{},
		callback,
	)
}

func (self *FeedApi) ToggleCommentLikeSync(postId Id, commentId Id) (*ToggleLikeResult, error) {
	return postJson(
		self,
		fmt.Sprintf("%s/posts/%s/comments/%s/toggleLike", self.apiUrl, postId, commentId),
		nil,
		&ToggleLikeResult{},
		NewNoopApiCallback[*ToggleLikeResult](),
	)
}

func postJson[R any](api *FeedApi, url string, args any, result R, callback apiCallback[R]) (R, error) {
	return requestJson(api, "POST", url, args, result, callback)
}

func putJson[R any](api *FeedApi, url string, args any, result R, callback apiCallback[R]) (R, error) {
	return requestJson(api, "PUT", url, args, result, callback)
}

func del[R any](api *FeedApi, url string, result R, callback apiCallback[R]) (R, error) {
	return request(api, "DELETE", url, nil, "", result, callback)
}

func get[R any](api *FeedApi, url string, result R, callback apiCallback[R]) (R, error) {
	return request(api, "GET", url, nil, "", result, callback)
}

func requestJson[R any](api *FeedApi, method string, url string, args any, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args == nil {
		requestBodyBytes = make([]byte, 0)
	} else {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	return request(api, method, url, bytes.NewReader(requestBodyBytes), "application/json", result, callback)
}

func postMultipart[R any](api *FeedApi, method string, url string, args *CreatePostArgs, result R, callback apiCallback[R]) (R, error) {
	requestBody := &bytes.Buffer{}
	writer := multipart.NewWriter(requestBody)

	fields := map[string]string{
		"userId": args.UserId.String(),
		"title":  args.Title,
		"body":   args.Body,
	}
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}
	for _, tag := range args.Tags {
		if err := writer.WriteField("tags", tag); err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}
	if args.Image != nil {
		part, err := writer.CreateFormFile("image", args.ImageName)
		if err == nil {
			_, err = io.Copy(part, args.Image)
		}
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}
	if err := writer.Close(); err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	return request(api, method, url, requestBody, writer.FormDataContentType(), result, callback)
}

func request[R any](api *FeedApi, method string, url string, requestBody io.Reader, contentType string, result R, callback apiCallback[R]) (R, error) {
	req, err := http.NewRequestWithContext(api.ctx, method, url, requestBody)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if contentType != "" {
		req.Header.Add("Content-Type", contentType)
	}
	if api.sessionToken != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", api.sessionToken))
	}
	if (api.sessionUserId != Id{}) {
		req.AddCookie(&http.Cookie{
			Name:  "userId",
			Value: api.sessionUserId.String(),
		})
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if r.StatusCode < 200 || 300 <= r.StatusCode {
		err = &ApiError{
			StatusCode: r.StatusCode,
			Message:    errorMessage(responseBodyBytes),
		}
		callback.Result(result, err)
		return result, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}

// the backend reports errors as `{"message": ...}`.
// fall back to the raw body.
func errorMessage(responseBodyBytes []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(responseBodyBytes, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(responseBodyBytes))
}
