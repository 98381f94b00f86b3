package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func iv(start, end string) Interval {
	return Interval{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{name: "back to back", a: iv("09:00", "11:00"), b: iv("11:00", "13:00"), want: false},
		{name: "partial", a: iv("09:00", "11:00"), b: iv("10:30", "12:30"), want: true},
		{name: "contained", a: iv("09:00", "17:00"), b: iv("12:00", "12:30"), want: true},
		{name: "identical", a: iv("09:00", "11:00"), b: iv("09:00", "11:00"), want: true},
		{name: "disjoint", a: iv("09:00", "10:00"), b: iv("14:00", "15:00"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestIsAvailable(t *testing.T) {
	session := SessionAt(MustTimeOfDay("11:10"))
	assert.Equal(t, iv("11:10", "13:10"), session)

	assert.True(t, IsAvailable(session, nil, nil))
	assert.False(t, IsAvailable(session, []Interval{iv("12:00", "14:00")}, nil))
	assert.False(t, IsAvailable(session, nil, []Interval{iv("13:00", "13:30")}))
	assert.True(t, IsAvailable(session, []Interval{iv("09:00", "11:00")}, []Interval{iv("13:10", "18:00")}))
}

func TestComputeSlots(t *testing.T) {
	windows := []Window{
		{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("17:00"), Active: true},
		{Start: MustTimeOfDay("18:00"), End: MustTimeOfDay("20:00"), Active: false},
	}
	slots := ComputeSlots(windows, []Interval{iv("11:10", "13:10")}, []Interval{iv("14:00", "14:30")})

	assert.Equal(t, []Slot{
		{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("11:00"), Available: true},
		{Start: MustTimeOfDay("11:10"), End: MustTimeOfDay("13:10"), Available: false},
		{Start: MustTimeOfDay("13:20"), End: MustTimeOfDay("15:20"), Available: false},
	}, slots)
}

func TestComputeSlotsNoWindows(t *testing.T) {
	slots := ComputeSlots(nil, nil, nil)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}
