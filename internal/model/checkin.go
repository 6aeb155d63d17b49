package model

// Checkin records one user attending one activity.
// UserID and ActivityID are plain references; neither side owns the record.
type Checkin struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	ActivityID  string   `json:"activityId"`
	CheckinTime DateTime `json:"checkinTime"`
}

// CheckinView is a check-in joined with the names a person wants to read:
// who checked in and into what. History endpoints return these.
type CheckinView struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	ActivityID          string   `json:"activityId"`
	ActivityDescription string   `json:"description"`
	CheckinTime         DateTime `json:"checkinTime"`
}

// CheckinResult is what a successful admission returns: the new check-in
// plus the caller's whole history, most recent first.
type CheckinResult struct {
	Current CheckinView   `json:"current"`
	History []CheckinView `json:"history"`
}
