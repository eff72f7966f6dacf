package boundary_test

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/spillq/boundary"
	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/registry"
)

// smallConfig keeps resident buffers tiny so modest inputs spill.
func smallConfig(t *testing.T) *engine.Config {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.Storage.TempDir = t.TempDir()
	cfg.Priority.ResidentBytes = 32 * 16
	cfg.Priority.BlockBytes = 8 * 16
	cfg.Priority.FanIn = 3
	cfg.FIFO.BlockBytes = 8 * 16
	return &cfg
}

func newAdapter(t *testing.T) *boundary.Adapter {
	t.Helper()

	a := boundary.NewAdapter(smallConfig(t))
	require.NoError(t, a.InitStorage(0))
	t.Cleanup(func() { a.ShutdownStorage() })
	return a
}

func requireCode(t *testing.T, want connect.Code, err error) {
	t.Helper()

	require.Error(t, err)
	var f *boundary.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, want, f.Code, "failure: %v", err)
	assert.NotEmpty(t, f.Message)
}

func u64(v uint64, width int) []byte {
	b := make([]byte, width)
	binary.BigEndian.PutUint64(b[width-8:], v)
	return b
}

func TestScenario_PriorityStore(t *testing.T) {
	a := newAdapter(t)

	h, err := a.CreatePriority(8)
	require.NoError(t, err)

	require.NoError(t, a.PriorityPush(h, 3.0, u64(1, 8)))
	require.NoError(t, a.PriorityPush(h, 1.0, u64(2, 8)))
	require.NoError(t, a.PriorityPush(h, 2.0, u64(3, 8)))

	for _, want := range []struct {
		priority float64
		payload  uint64
	}{{1.0, 2}, {2.0, 3}, {3.0, 1}} {
		priority, payload, err := a.PriorityTop(h)
		require.NoError(t, err)
		assert.Equal(t, want.priority, priority)
		assert.Equal(t, u64(want.payload, 8), payload)
		require.NoError(t, a.PriorityPop(h))
	}

	empty, err := a.PriorityIsEmpty(h)
	require.NoError(t, err)
	assert.True(t, empty)
	requireCode(t, connect.CodeOutOfRange, a.PriorityPop(h))
}

func TestScenario_FIFOStore(t *testing.T) {
	a := newAdapter(t)

	h, err := a.CreateFIFO(16)
	require.NoError(t, err)

	payloadA := bytes.Repeat([]byte{'A'}, 16)
	payloadB := bytes.Repeat([]byte{'B'}, 16)
	require.NoError(t, a.FIFOPush(h, payloadA))
	require.NoError(t, a.FIFOPush(h, payloadB))

	front, err := a.FIFOFront(h)
	require.NoError(t, err)
	assert.Equal(t, payloadA, front)

	size, err := a.FIFOSize(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), size)

	require.NoError(t, a.FIFOPop(h))
	buf := make([]byte, 16)
	require.NoError(t, a.FIFOFrontInto(h, buf))
	assert.Equal(t, payloadB, buf)
}

func TestRoundTrip_AllSizeClassesBothDisciplines(t *testing.T) {
	a := newAdapter(t)

	for _, width := range []int{8, 16, 32, 64, 128, 256, 512, 1024} {
		payload := make([]byte, width)
		for i := range payload {
			payload[i] = byte(i*7 + width)
		}

		ph, err := a.CreatePriority(width)
		require.NoError(t, err)
		require.NoError(t, a.PriorityPush(ph, -2.5, payload))
		buf := make([]byte, width)
		priority, err := a.PriorityTopInto(ph, buf)
		require.NoError(t, err)
		assert.Equal(t, -2.5, priority)
		assert.Equal(t, payload, buf)

		fh, err := a.CreateFIFO(width)
		require.NoError(t, err)
		require.NoError(t, a.FIFOPush(fh, payload))
		front, err := a.FIFOFront(fh)
		require.NoError(t, err)
		assert.Equal(t, payload, front)

		require.NoError(t, a.Destroy(ph))
		require.NoError(t, a.Destroy(fh))
	}
}

func TestUnsupportedSizeClass(t *testing.T) {
	a := newAdapter(t)

	for _, width := range []int{7, 100, 0, 4096} {
		_, err := a.CreatePriority(width)
		requireCode(t, connect.CodeInvalidArgument, err)
		_, err = a.CreateFIFO(width)
		requireCode(t, connect.CodeInvalidArgument, err)
	}
	assert.Equal(t, 0, a.Engine().Registry().Len())

	h, err := a.CreateFIFO(8)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h)
}

func TestInvalidHandle(t *testing.T) {
	a := newAdapter(t)

	ph, err := a.CreatePriority(8)
	require.NoError(t, err)
	fh, err := a.CreateFIFO(8)
	require.NoError(t, err)
	payload := make([]byte, 8)

	for _, h := range []int64{0, -1, 999, fh} {
		requireCode(t, connect.CodeNotFound, a.PriorityPush(h, 1, payload))
		_, _, err := a.PriorityTop(h)
		requireCode(t, connect.CodeNotFound, err)
		_, err = a.PriorityTopInto(h, payload)
		requireCode(t, connect.CodeNotFound, err)
		requireCode(t, connect.CodeNotFound, a.PriorityPop(h))
		_, err = a.PrioritySize(h)
		requireCode(t, connect.CodeNotFound, err)
		_, err = a.PriorityIsEmpty(h)
		requireCode(t, connect.CodeNotFound, err)
	}

	for _, h := range []int64{0, -1, 999, ph} {
		requireCode(t, connect.CodeNotFound, a.FIFOPush(h, payload))
		_, err := a.FIFOFront(h)
		requireCode(t, connect.CodeNotFound, err)
		requireCode(t, connect.CodeNotFound, a.FIFOFrontInto(h, payload))
		requireCode(t, connect.CodeNotFound, a.FIFOPop(h))
		_, err = a.FIFOSize(h)
		requireCode(t, connect.CodeNotFound, err)
		_, err = a.FIFOIsEmpty(h)
		requireCode(t, connect.CodeNotFound, err)
	}

	require.NoError(t, a.Destroy(ph))
	err = a.Destroy(ph)
	requireCode(t, connect.CodeNotFound, err)
	assert.ErrorIs(t, err, registry.ErrInvalidHandle)
}

func TestEmptyQueue(t *testing.T) {
	a := newAdapter(t)

	ph, err := a.CreatePriority(32)
	require.NoError(t, err)
	fh, err := a.CreateFIFO(32)
	require.NoError(t, err)

	_, _, err = a.PriorityTop(ph)
	requireCode(t, connect.CodeOutOfRange, err)
	assert.ErrorIs(t, err, queue.ErrEmptyQueue)
	requireCode(t, connect.CodeOutOfRange, a.PriorityPop(ph))

	_, err = a.FIFOFront(fh)
	requireCode(t, connect.CodeOutOfRange, err)
	assert.ErrorIs(t, err, queue.ErrEmptyQueue)
	requireCode(t, connect.CodeOutOfRange, a.FIFOPop(fh))

	size, err := a.PrioritySize(ph)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)
}

func TestPayloadSize(t *testing.T) {
	a := newAdapter(t)

	ph, err := a.CreatePriority(16)
	require.NoError(t, err)
	requireCode(t, connect.CodeInvalidArgument, a.PriorityPush(ph, 1, make([]byte, 8)))

	fh, err := a.CreateFIFO(16)
	require.NoError(t, err)
	requireCode(t, connect.CodeInvalidArgument, a.FIFOPush(fh, make([]byte, 17)))

	size, err := a.FIFOSize(fh)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)
}

func TestSpillTransparency(t *testing.T) {
	a := newAdapter(t)
	rng := rand.New(rand.NewPCG(3, 5))

	ph, err := a.CreatePriority(8)
	require.NoError(t, err)
	fh, err := a.CreateFIFO(16)
	require.NoError(t, err)

	const n = 3000
	priorities := make([]float64, n)
	for i := range n {
		priorities[i] = rng.NormFloat64()
		require.NoError(t, a.PriorityPush(ph, priorities[i], u64(uint64(i), 8)))
		require.NoError(t, a.FIFOPush(fh, u64(uint64(i), 16)))
	}
	assert.Positive(t, a.SpilledBytes())

	slices.Sort(priorities)
	for i := range n {
		priority, _, err := a.PriorityTop(ph)
		require.NoError(t, err)
		require.Equal(t, priorities[i], priority)
		require.NoError(t, a.PriorityPop(ph))

		front, err := a.FIFOFront(fh)
		require.NoError(t, err)
		require.Equal(t, u64(uint64(i), 16), front)
		require.NoError(t, a.FIFOPop(fh))
	}
	assert.Equal(t, uint64(0), a.SpilledBytes())
}

func TestLifecycle(t *testing.T) {
	root := t.TempDir()
	a := boundary.NewAdapter(smallConfig(t))

	_, err := a.CreatePriority(8)
	requireCode(t, connect.CodeFailedPrecondition, err)
	requireCode(t, connect.CodeFailedPrecondition, a.Destroy(1))
	requireCode(t, connect.CodeFailedPrecondition, a.ShutdownStorage())
	assert.Equal(t, uint64(0), a.SpilledBytes())
	assert.Nil(t, a.Engine())

	require.NoError(t, a.SetTempDirectory(root, "early"))
	require.NoError(t, a.InitStorage(1024))
	assert.Equal(t, uint64(boundary.MinMemoryBudget), a.Engine().Storage().Budget())
	assert.Equal(t, filepath.Join(root, "early"), a.Engine().Storage().TempDir())
	assert.DirExists(t, filepath.Join(root, "early"))

	requireCode(t, connect.CodeFailedPrecondition, a.InitStorage(64<<20))

	require.NoError(t, a.SetTempDirectory(root, "late"))
	h, err := a.CreateFIFO(8)
	require.NoError(t, err)
	for i := range 200 {
		require.NoError(t, a.FIFOPush(h, u64(uint64(i), 8)))
	}
	matches, err := filepath.Glob(filepath.Join(root, "late", "*.spill"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	require.NoError(t, a.ShutdownStorage())
	assert.NoDirExists(t, filepath.Join(root, "early"))
	assert.NoDirExists(t, filepath.Join(root, "late"))
	assert.Equal(t, uint64(0), a.SpilledBytes())

	requireCode(t, connect.CodeFailedPrecondition, a.FIFOPush(h, u64(1, 8)))
	requireCode(t, connect.CodeFailedPrecondition, a.ShutdownStorage())
	requireCode(t, connect.CodeFailedPrecondition, a.InitStorage(0))
	requireCode(t, connect.CodeFailedPrecondition, a.SetTempDirectory(root, ""))
}
