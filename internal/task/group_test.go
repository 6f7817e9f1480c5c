package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func res(client, version, hash string, success bool) Result {
	return Result{
		Success:       success,
		Created:       "2019-08-01T12:00:00Z",
		ClientName:    client,
		ClientVersion: version,
		PostHash:      hash,
	}
}

func hashesOf(groups []ResultGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.PostHash)
	}
	return out
}

func keysOf(g ResultGroup) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, m.Key)
	}
	return out
}

func TestGroupResults_Empty(t *testing.T) {
	groups := GroupResults(map[string]Result{})
	require.NotNil(t, groups)
	assert.Empty(t, groups)

	assert.Empty(t, GroupResults(nil))
}

func TestGroupResults_SingleRecord(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("zrnt", "v0.1.0", "0xaa", true),
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "0xaa", groups[0].PostHash)
	assert.Equal(t, []string{"a"}, keysOf(groups[0]))
}

func TestGroupResults_CanonicalAndFailure(t *testing.T) {
	in := map[string]Result{
		"a": res(CanonicalClient, "v0.8.3", "0x1", true),
		"b": res("lighthouse", "v0.1.0", "0x1", true),
		"c": res("prysm", "v0.2.0", "0x2", false),
	}
	groups := GroupResults(in)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"0x1", "0x2"}, hashesOf(groups))
	assert.Equal(t, []string{"a", "b"}, keysOf(groups[0]))
	assert.Equal(t, []string{"c"}, keysOf(groups[1]))
	assert.Equal(t, in["a"], groups[0].Members[0].Data)
}

func TestGroupResults_DuplicateDelivery(t *testing.T) {
	a := res("nimbus", "v1", "0x1", true)
	b := res("nimbus", "v1", "0x1", true)
	b.Created = "2019-08-01T12:05:00Z"

	groups := GroupResults(map[string]Result{"a": a, "b": b})

	require.Len(t, groups, 1)
	assert.Equal(t, "0x1", groups[0].PostHash)
	assert.Equal(t, []string{"a"}, keysOf(groups[0]))
}

func TestGroupResults_DedupOnlyOnFullTriple(t *testing.T) {
	tests := []struct {
		name  string
		other Result
	}{
		{"different client", res("lodestar", "v1", "0x1", true)},
		{"different version", res("nimbus", "v2", "0x1", true)},
		{"different success", res("nimbus", "v1", "0x1", false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := GroupResults(map[string]Result{
				"a": res("nimbus", "v1", "0x1", true),
				"b": tt.other,
			})
			require.Len(t, groups, 1)
			assert.Equal(t, []string{"a", "b"}, keysOf(groups[0]))
		})
	}
}

func TestGroupResults_SameTripleDifferentHash(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("nimbus", "v1", "0x1", true),
		"b": res("nimbus", "v1", "0x2", true),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"0x1", "0x2"}, hashesOf(groups))
}

func TestGroupResults_CanonicalFirst(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("lighthouse", "v1", "0x01", true),
		"b": res("prysm", "v1", "0x02", true),
		"c": res("zrnt", "v1", "0x03", false),
		"d": res(CanonicalClient, "v0.8.3", "0x04", true),
	})
	require.Len(t, groups, 4)
	assert.Equal(t, "0x04", groups[0].PostHash)
	assert.Equal(t, "0x03", groups[3].PostHash)
}

func TestGroupResults_CanonicalWinsOverFailure(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("lighthouse", "v1", "0x01", true),
		"b": res(CanonicalClient, "v0.8.3", "0x02", false),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"0x02", "0x01"}, hashesOf(groups))
}

func TestGroupResults_FailureLast(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("prysm", "v1", "0x00", false),
		"b": res("prysm", "v1", "0xff", true),
	})
	assert.Equal(t, []string{"0xff", "0x00"}, hashesOf(groups))
}

func TestGroupResults_TieBreakByHash(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"k1": res("lighthouse", "v1", "0xc0", true),
		"k2": res("prysm", "v1", "0xa0", true),
		"k3": res("zrnt", "v1", "0xb0", true),
	})
	assert.Equal(t, []string{"0xa0", "0xb0", "0xc0"}, hashesOf(groups))
}

func TestGroupResults_KeysSubsetOfInput(t *testing.T) {
	in := map[string]Result{
		"a": res("nimbus", "v1", "0x1", true),
		"b": res("nimbus", "v1", "0x1", true),
		"c": res("lighthouse", "v1", "0x1", true),
		"d": res("prysm", "v1", "0x2", false),
		"e": res(CanonicalClient, "v1", "0x3", true),
	}
	seen := map[string]bool{}
	for _, g := range GroupResults(in) {
		for _, m := range g.Members {
			_, ok := in[m.Key]
			assert.True(t, ok, "unexpected key %s", m.Key)
			assert.False(t, seen[m.Key], "duplicate key %s", m.Key)
			seen[m.Key] = true
			assert.Equal(t, g.PostHash, m.Data.PostHash)
		}
	}
	assert.Len(t, seen, 4)
	assert.False(t, seen["b"])
}

func TestGroupResults_Idempotent(t *testing.T) {
	in := map[string]Result{
		"a": res("nimbus", "v1", "0x1", true),
		"b": res("lighthouse", "v2", "0x2", true),
		"c": res("prysm", "v1", "0x3", false),
		"d": res(CanonicalClient, "v1", "0x2", true),
		"e": res("zrnt", "v1", "0x4", true),
	}
	first := GroupResults(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GroupResults(in))
	}
	assert.Len(t, in, 5)
}

func TestGroupResults_EmptyPostHash(t *testing.T) {
	groups := GroupResults(map[string]Result{
		"a": res("prysm", "v1", "", false),
		"b": res("zrnt", "v1", "0x1", true),
	})
	assert.Equal(t, []string{"0x1", ""}, hashesOf(groups))
}

func TestTask_Groups(t *testing.T) {
	tsk := &Task{
		Key: "t1",
		Results: map[string]Result{
			"a": res("nimbus", "v1", "0x1", true),
			"b": res("prysm", "v1", "0x2", false),
		},
	}
	assert.Equal(t, GroupResults(tsk.Results), tsk.Groups())
	assert.True(t, tsk.HasFailure())
	assert.False(t, tsk.Consensus())
}
