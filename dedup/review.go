package dedup

// ReviewState is the phase of an interactive duplicate review.
type ReviewState int

// Review phases. A review moves Idle → AwaitingConfirmation → Resolved and
// never backwards.
const (
	ReviewIdle ReviewState = iota
	ReviewAwaitingConfirmation
	ReviewResolved
)

// Review walks a caller (typically the recorder UI) through the detected
// groups one at a time, collecting which ones the user confirmed as true
// duplicates. All state is explicit and lives in the Review value.
type Review struct {
	groups    []Group
	state     ReviewState
	index     int
	confirmed []Group
}

// NewReview creates a review over the given groups, in Idle state.
func NewReview(groups []Group) *Review {
	return &Review{groups: groups}
}

// State returns the review's current phase.
func (r *Review) State() ReviewState { return r.state }

// Start transitions the review to its first group. An empty group list
// resolves immediately.
func (r *Review) Start() {
	if len(r.groups) == 0 {
		r.state = ReviewResolved
		return
	}
	r.state = ReviewAwaitingConfirmation
	r.index = 0
}

// Current returns the group awaiting confirmation. The second return is
// false unless the review is mid-flight.
func (r *Review) Current() (Group, bool) {
	if r.state != ReviewAwaitingConfirmation {
		return Group{}, false
	}
	return r.groups[r.index], true
}

// Confirm accepts the current group as a true duplicate set and advances.
func (r *Review) Confirm() {
	if r.state != ReviewAwaitingConfirmation {
		return
	}
	r.confirmed = append(r.confirmed, r.groups[r.index])
	r.advance()
}

// Reject skips the current group and advances.
func (r *Review) Reject() {
	if r.state != ReviewAwaitingConfirmation {
		return
	}
	r.advance()
}

func (r *Review) advance() {
	r.index++
	if r.index >= len(r.groups) {
		r.state = ReviewResolved
	}
}

// Confirmed returns the accepted groups. It is only meaningful once the
// review is Resolved; the usual next step is AssignElementIDs on it.
func (r *Review) Confirmed() []Group {
	return r.confirmed
}
