package scope_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simd-personal/Inno-Supps/scope"
)

func TestRestore_KeepsUser(t *testing.T) {
	t.Parallel()

	ctx := scope.With(context.Background(), scope.Scope{WorkspaceID: "ws_a", UserID: "u_1"})
	ctx = scope.Restore(ctx, "ws_b", "job_1")

	s, ok := scope.From(ctx)
	assert.True(t, ok)
	assert.Equal(t, scope.Scope{WorkspaceID: "ws_b", UserID: "u_1", JobID: "job_1"}, s)
}

func TestRestore_EmptyIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := scope.Restore(context.Background(), "", "job_1")
	_, ok := scope.From(ctx)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	bg := context.Background()
	scoped := scope.With(bg, scope.Scope{WorkspaceID: "ws_ctx"})

	assert.Equal(t, "ws_given", scope.Resolve(scoped, "ws_given"))
	assert.Equal(t, "ws_ctx", scope.Resolve(scoped, ""))
	assert.Equal(t, scope.SystemWorkspace, scope.Resolve(bg, ""))
}
