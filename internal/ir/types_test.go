package ir

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainKey_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b DomainKey
		want int
	}{
		{"equal", DomainKey{1, 2}, DomainKey{1, 2}, 0},
		{"domain first", DomainKey{0, 9}, DomainKey{1, 0}, -1},
		{"domain greater", DomainKey{2, 0}, DomainKey{1, 9}, 1},
		{"time step tie-break", DomainKey{1, 0}, DomainKey{1, 1}, -1},
		{"time step greater", DomainKey{1, 3}, DomainKey{1, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestDomainKey_SortIsTotal(t *testing.T) {
	keys := []DomainKey{{2, 0}, {0, 1}, {1, 1}, {0, 0}, {1, 0}}
	slices.SortFunc(keys, DomainKey.Compare)
	assert.Equal(t, []DomainKey{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}}, keys)
}

func TestDomainKey_String(t *testing.T) {
	assert.Equal(t, "3@1", DomainKey{Domain: 3, TimeStep: 1}.String())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "exited_domain", StatusExitedDomain.String())
	assert.Equal(t, "terminated", StatusTerminated.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestVec3(t *testing.T) {
	v := Vec3{3, 4, 0}
	assert.Equal(t, 5.0, v.Norm())
	assert.Equal(t, Vec3{4, 5, 1}, v.Add(Vec3{1, 1, 1}))
	assert.Equal(t, Vec3{2, 3, -1}, v.Sub(Vec3{1, 1, 1}))
	assert.Equal(t, Vec3{6, 8, 0}, v.Scale(2))
	assert.True(t, v.IsFinite())
	assert.False(t, Vec3{math.NaN(), 0, 0}.IsFinite())
	assert.False(t, Vec3{0, math.Inf(1), 0}.IsFinite())
}

func TestKind_RoundTrip(t *testing.T) {
	for _, k := range []Kind{KindDone, KindDatasetRequest, KindDatasetPayload, KindHello} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("migrate")
	assert.Error(t, err)
}

func TestMessage_Constructors(t *testing.T) {
	key := DomainKey{Domain: 1}

	done := NewDone(0, 1)
	assert.Equal(t, Message{Kind: KindDone, From: 0, To: 1}, done)

	req := NewDatasetRequest(0, 1, key)
	assert.Equal(t, KindDatasetRequest, req.Kind)
	assert.Equal(t, key, req.Key)
	assert.Equal(t, "dataset_request{1@0} 0->1", req.String())

	pay := NewDatasetPayload(1, 0, key, Payload("abc"))
	assert.Equal(t, "dataset_payload{1@0,3B} 1->0", pay.String())
	assert.Equal(t, "done 0->1", done.String())
}
