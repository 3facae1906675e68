package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/docopt/docopt-go"

	"github.com/postline/feed/feed"
)

const DefaultApiUrl = "http://localhost:4000"
const DefaultChannelUrl = "ws://localhost:4000/ws/"

const Version = "0.1.0"

func main() {
	usage := fmt.Sprintf(
		`Feed client.

The default urls are:
    api_url: %s
    channel_url: %s

Usage:
    feedctl posts --email=<email> [--password=<password>]
        [--api_url=<api_url>]
    feedctl watch <post_id> --email=<email> [--password=<password>]
        [--api_url=<api_url>]
        [--channel_url=<channel_url>]

Options:
    -h --help                      Show this screen.
    --version                      Show version.
    --api_url=<api_url>
    --channel_url=<channel_url>
    --email=<email>
    --password=<password>`,
		DefaultApiUrl,
		DefaultChannelUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		panic(err)
	}

	if posts_, _ := opts.Bool("posts"); posts_ {
		posts(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func posts(opts docopt.Opts) {
	cancelCtx, cancel := signalContext()
	defer cancel()

	client := signIn(cancelCtx, opts)
	defer client.Close()

	if err := client.LoadPosts(); err != nil {
		fmt.Fprintf(os.Stderr, "load posts error: %s\n", err)
		os.Exit(1)
	}

	for _, post := range client.Store().Posts() {
		tagNames := []string{}
		for _, tag := range feed.SortTags(post.Tags) {
			tagNames = append(tagNames, tag.Name)
		}
		fmt.Printf(
			"%s  %s  (+%d, %d comments)  [%s]\n",
			post.Id,
			post.Title,
			post.LikeCount,
			len(post.Comments),
			strings.Join(tagNames, ","),
		)
	}
}

func watch(opts docopt.Opts) {
	cancelCtx, cancel := signalContext()
	defer cancel()

	postId, err := feed.ParseId(opts["<post_id>"].(string))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad post id: %s\n", err)
		os.Exit(1)
	}

	client := signIn(cancelCtx, opts)
	defer client.Close()

	if err := client.LoadPost(postId); err != nil {
		fmt.Fprintf(os.Stderr, "load post error: %s\n", err)
		os.Exit(1)
	}

	index := feed.NewCommentIndex(client.Store(), postId)

	render := func() {
		post := client.Store().Post(postId)
		if post == nil {
			fmt.Printf("(post deleted)\n")
			return
		}
		fmt.Printf("== %s (+%d)\n", post.Title, post.LikeCount)
		index.WalkReplies(nil, func(comment *feed.Comment, depth int) {
			pending := ""
			if comment.Pending {
				pending = " (pending)"
			}
			fmt.Printf(
				"%s%s: %s (+%d)%s\n",
				strings.Repeat("  ", depth+1),
				comment.User.Name,
				comment.Message,
				comment.LikeCount,
				pending,
			)
		})
	}
	render()

	removeChangeCallback := client.Store().AddChangeCallback(func(version uint64) {
		render()
	})
	defer removeChangeCallback()

	removeConnectivityCallback := client.Transport().AddConnectivityCallback(func(connected bool) {
		if connected {
			fmt.Printf("-- channel connected\n")
		} else {
			fmt.Printf("-- channel disconnected\n")
		}
	})
	defer removeConnectivityCallback()

	<-cancelCtx.Done()
}

func signIn(ctx context.Context, opts docopt.Opts) *feed.FeedClient {
	var apiUrl string
	if apiUrlAny := opts["--api_url"]; apiUrlAny != nil {
		apiUrl = apiUrlAny.(string)
	} else {
		apiUrl = DefaultApiUrl
	}

	var channelUrl string
	if channelUrlAny := opts["--channel_url"]; channelUrlAny != nil {
		channelUrl = channelUrlAny.(string)
	} else {
		channelUrl = DefaultChannelUrl
	}

	email, _ := opts["--email"].(string)

	var password string
	if passwordAny := opts["--password"]; passwordAny != nil {
		password = passwordAny.(string)
	} else {
		fmt.Print("password? ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			panic(err)
		}
		password = string(passwordBytes)
	}

	api := feed.NewFeedApiWithContext(ctx, apiUrl)
	defer api.Close()

	result, err := api.SignInSync(&feed.SignInArgs{
		Email:    email,
		Password: password,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign in error: %s\n", err)
		os.Exit(1)
	}

	user := &feed.User{
		Id:   result.Id,
		Name: result.FirstName,
	}
	return feed.NewFeedClientWithDefaults(ctx, apiUrl, channelUrl, user)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
}
