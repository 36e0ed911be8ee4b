package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	ts := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	set := &ts

	tests := []struct {
		name       string
		first      *time.Time
		second     *time.Time
		third      *time.Time
		rejected   *time.Time
		want       StatusKind
		wantString string
		wantStage  int
	}{
		{name: "none", want: AwaitingFirstApproval, wantString: "awaiting first-stage approval", wantStage: 1},
		{name: "first", first: set, want: AwaitingSecondApproval, wantString: "awaiting second-stage approval", wantStage: 2},
		{name: "first and second", first: set, second: set, want: AwaitingThirdApproval, wantString: "awaiting third-stage approval", wantStage: 3},
		{name: "all three", first: set, second: set, third: set, want: FullyApproved, wantString: "fully approved"},
		{name: "rejected before any approval", rejected: set, want: Rejected, wantString: "rejected at stage 0"},
		{name: "rejected after first", first: set, rejected: set, want: Rejected, wantString: "rejected at stage 1"},
		{name: "rejected after second", first: set, second: set, rejected: set, want: Rejected, wantString: "rejected at stage 2"},

		// out of order data
		{name: "third approval wins over rejection", first: set, second: set, third: set, rejected: set, want: FullyApproved, wantString: "fully approved"},
		{name: "third without the others", third: set, want: FullyApproved, wantString: "fully approved"},
		{name: "second without first", second: set, want: AwaitingThirdApproval, wantString: "awaiting third-stage approval", wantStage: 3},
		{name: "rejected with second only", second: set, rejected: set, want: Rejected, wantString: "rejected at stage 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project{FirstApprovedAt: tt.first, SecondApprovedAt: tt.second, ThirdApprovedAt: tt.third, RejectedAt: tt.rejected}
			s := StatusOf(p)
			assert.Equal(t, tt.want, s.Kind)
			assert.Equal(t, tt.wantString, s.String())
			assert.Equal(t, tt.wantStage, p.NextStage())
			assert.Equal(t, tt.wantStage != 0, s.Pending())
		})
	}
}

// The projection is total: every combination of the four timestamps maps to exactly one known status.
func TestStatusOf_total(t *testing.T) {
	ts := time.Now()
	pick := func(bit, mask int) *time.Time {
		if mask&bit != 0 {
			return &ts
		}
		return nil
	}
	for mask := 0; mask < 16; mask++ {
		p := Project{
			FirstApprovedAt:  pick(1, mask),
			SecondApprovedAt: pick(2, mask),
			ThirdApprovedAt:  pick(4, mask),
			RejectedAt:       pick(8, mask),
		}
		s := p.Status()
		if _, ok := statusCodes[s.Kind]; !ok {
			t.Errorf("mask %04b: unknown status %d", mask, s.Kind)
		}
		assert.NotEmpty(t, s.String())
		assert.Contains(t, StatusCodes, s.Code())
	}
}

func TestStatus_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{Status{Kind: AwaitingSecondApproval}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "awaiting_second"}`, string(data))
}

func TestQueryFilter_Matches(t *testing.T) {
	ts := time.Now()
	p := Project{OwnerID: "u1", ThaiName: "ระบบ A", EnglishName: "Water System", FirstApprovedAt: &ts}

	tests := []struct {
		name   string
		filter QueryFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "owner", filter: QueryFilter{OwnerID: "u1"}, want: true},
		{name: "other owner", filter: QueryFilter{OwnerID: "u2"}},
		{name: "status", filter: QueryFilter{Status: " Awaiting_Second "}, want: true},
		{name: "other status", filter: QueryFilter{Status: "approved"}},
		{name: "english search", filter: QueryFilter{Search: "water"}, want: true},
		{name: "thai search", filter: QueryFilter{Search: "ระบบ"}, want: true},
		{name: "no match", filter: QueryFilter{Search: "energy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Clean()
			assert.Equal(t, tt.want, tt.filter.Matches(p))
		})
	}
}
