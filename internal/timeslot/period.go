package timeslot

// Period is a coarse part-of-day label. It is informational only (status
// output, logs) and is never used to pick a track.
type Period string

const (
	Morning Period = "morning"
	Day     Period = "day"
	Evening Period = "evening"
	Night   Period = "night"
)

// Period classifies the slot: morning 5am-11am, day 12pm-4pm, evening
// 5pm-8pm, night otherwise.
func (s Slot) Period() Period {
	switch h := s.Hour24(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Day
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}
