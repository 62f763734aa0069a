package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScriptedQueues(t *testing.T) {
	boom := errors.New("down")
	s := NewScripted().On(RoleRouter, "FACTUAL", "ANALYSIS").Fail(RoleScorer, boom).Default("ok")
	ctx := context.Background()

	out, err := s.Reason(ctx, Call{Role: RoleRouter})
	require.NoError(t, err)
	assert.Equal(t, "FACTUAL", out)
	out, _ = s.Reason(ctx, Call{Role: RoleRouter})
	assert.Equal(t, "ANALYSIS", out)
	out, _ = s.Reason(ctx, Call{Role: RoleRouter})
	assert.Equal(t, "ANALYSIS", out, "last reply repeats")

	_, err = s.Reason(ctx, Call{Role: RoleScorer})
	assert.ErrorIs(t, err, boom)

	out, err = s.Reason(ctx, Call{Role: RoleBull})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	assert.Equal(t, 3, s.Count(RoleRouter))
	assert.Len(t, s.Calls(), 5)
}

func TestScriptedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScripted().Default("x").Reason(ctx, Call{Role: RoleBull})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, call Call) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	_, err := WithTimeout(slow, 20*time.Millisecond).Reason(context.Background(), Call{Role: RoleCritic})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "critic call timed out")

	_, wrapped := WithTimeout(slow, 0).(*timeoutReasoner)
	assert.False(t, wrapped)
}

func TestWithLoggingPassesThrough(t *testing.T) {
	r := WithLogging(NewScripted().Default("hi"), zap.NewNop())
	out, err := r.Reason(context.Background(), Call{Role: RoleNarrator})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestEinoAdapter(t *testing.T) {
	var got []*schema.Message
	e := NewEino(generatorFunc(func(_ context.Context, in []*schema.Message) (*schema.Message, error) {
		got = in
		return schema.AssistantMessage("answer", nil), nil
	}))

	out, err := e.Reason(context.Background(), Call{Role: RoleRouter, Instruction: "sys", Content: "user"})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	require.Len(t, got, 2)
	assert.Equal(t, schema.System, got[0].Role)
	assert.Equal(t, "user", got[1].Content)

	empty := NewEino(generatorFunc(func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("  ", nil), nil
	}))
	_, err = empty.Reason(context.Background(), Call{Role: RoleRouter})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
