package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/LiveChat/internal/model"
)

// Create followed by List shows exactly one new message, equal to the one
// returned, sorted after everything before it. A second List is identical.
func TestMessageService_CreateThenListProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo, b := newMemoryRepo(), &recordingBroadcaster{}
		if rapid.Bool().Draw(t, "same_tick") {
			repo.step = 0
		}
		svc := newTestService(repo, b)
		ctx := context.Background()

		requests := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) CreateMessageRequest {
			return CreateMessageRequest{
				Username: rapid.StringMatching(`[a-z][a-z0-9_]{0,15}`).Draw(t, "username"),
				Content:  rapid.StringMatching(`[a-zA-Z0-9 ,.!?]{0,40}[a-z]`).Draw(t, "content"),
			}
		}), 1, 20).Draw(t, "requests")

		var created []model.Message
		for _, req := range requests {
			before, err := svc.List(ctx)
			require.NoError(t, err)

			msg, err := svc.Create(ctx, req, "")
			require.NoError(t, err)
			created = append(created, *msg)

			after, err := svc.List(ctx)
			require.NoError(t, err)
			require.Len(t, after, len(before)+1)
			require.Equal(t, before, after[:len(before)])

			last := after[len(after)-1]
			require.Equal(t, *msg, last)
			for _, prior := range before {
				require.False(t, last.CreatedAt.Before(prior.CreatedAt))
			}

			again, err := svc.List(ctx)
			require.NoError(t, err)
			require.Equal(t, after, again)
		}

		listed, err := svc.List(ctx)
		require.NoError(t, err)
		require.Equal(t, created, listed)
		for i := 1; i < len(listed); i++ {
			require.True(t, listed[i-1].Before(listed[i]))
		}
		require.Len(t, b.Events(), len(requests))
	})
}

// Any blank username or content is rejected and leaves the history untouched.
func TestMessageService_BlankFieldsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	blank := gen.IntRange(0, 6).Map(func(n int) string {
		return strings.Repeat(" \t\n"[n%3:n%3+1], n)
	})

	properties.Property("blank username is rejected", prop.ForAll(
		func(username, content string) bool {
			return rejectsWithoutStoring(CreateMessageRequest{Username: username, Content: content}, "username")
		},
		blank, gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("blank content is rejected", prop.ForAll(
		func(username, content string) bool {
			return rejectsWithoutStoring(CreateMessageRequest{Username: username, Content: content}, "content")
		},
		gen.Identifier(), blank,
	))

	properties.TestingRun(t)
}

func rejectsWithoutStoring(req CreateMessageRequest, field string) bool {
	repo, b := newMemoryRepo(), &recordingBroadcaster{}
	svc := newTestService(repo, b)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := svc.Create(ctx, req, "")
	verr, ok := err.(*ValidationError)
	if !ok || len(verr.Fields[field]) == 0 {
		return false
	}
	listed, err := svc.List(ctx)
	return err == nil && len(listed) == 0 && len(b.Events()) == 0
}
