package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
)

type countingDirectory struct {
	Static
	calls int
}

func (c *countingDirectory) Lookup(ctx context.Context, id string) (approval.Actor, error) {
	c.calls++
	return c.Static.Lookup(ctx, id)
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestCachedDirectory_ReadThrough(t *testing.T) {
	mr, rdb := setupCache(t)
	next := &countingDirectory{Static: Static{
		"hod-1": {Name: "Dr. Rao", Role: approval.RoleHOD, Department: "CSE"},
	}}
	c := NewCachedDirectory(next, rdb, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := c.Lookup(ctx, "hod-1")
	require.NoError(t, err)
	second, err := c.Lookup(ctx, "hod-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, approval.RoleHOD, second.Role)
	assert.Equal(t, "hod-1", second.ID)
	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists(cacheKeyPrefix+"hod-1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Lookup(ctx, "hod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedDirectory_UnknownUserNotCached(t *testing.T) {
	mr, rdb := setupCache(t)
	c := NewCachedDirectory(&countingDirectory{Static: Static{}}, rdb, time.Minute, nil)

	_, err := c.Lookup(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.False(t, mr.Exists(cacheKeyPrefix+"ghost"))
}

func TestCachedDirectory_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := setupCache(t)
	next := &countingDirectory{Static: Static{"t-1": {Role: approval.RoleTutor, Class: "BE_CSE_G1"}}}
	c := NewCachedDirectory(next, rdb, time.Minute, zaptest.NewLogger(t))
	mr.Close()

	actor, err := c.Lookup(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, approval.RoleTutor, actor.Role)
}

func TestStaffActor_ParsesDesignation(t *testing.T) {
	a, err := staffActor("x", staffRecord{Name: "A", Designation: "Class Advisor", Class: "BE_CSE_G1"})
	require.NoError(t, err)
	assert.Equal(t, approval.RoleTutor, a.Role)

	_, err = staffActor("y", staffRecord{Designation: "Librarian"})
	assert.Error(t, err)
}
