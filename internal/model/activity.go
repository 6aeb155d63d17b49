package model

// Activity is a scheduled gym session with a fixed attendance capacity.
//
// Activities do not hold their check-ins. A Checkin points at its activity
// through ActivityID and the stores answer "how many check-ins does this
// activity have" with a COUNT query.
type Activity struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	StartTime   DateTime `json:"startTime"`
	FinishTime  DateTime `json:"finishTime"`
	LimitPeople int      `json:"limitPeople"`
}

// Availability is the read model behind GET /activity/{id}/availability.
type Availability struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	LimitPeople    int    `json:"limitPeople"`
	CheckinCount   int    `json:"checkinCount"`
	AvailableSlots int    `json:"availableSlots"`
}

// NewAvailability computes the free slots of an activity. The result is
// clamped at zero: a race between concurrent check-ins can over-admit, and
// a negative slot count would only confuse clients.
func NewAvailability(a *Activity, checkinCount int) Availability {
	return Availability{
		ID:             a.ID,
		Description:    a.Description,
		LimitPeople:    a.LimitPeople,
		CheckinCount:   checkinCount,
		AvailableSlots: max(a.LimitPeople-checkinCount, 0),
	}
}
