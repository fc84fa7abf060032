package scanner

// Admission implements the admission-control rule from §4.4: "The
// scanner stops feeding the queue once the round's enqueue count plus the
// queue's pending count reaches max_downloads." A zero limit means
// unlimited.
type Admission struct {
	limit     int
	alreadyIn int
	enqueued  int
}

// NewAdmission builds an Admission tracker. alreadyPending is the queue's
// current pending-item count at the start of the round.
func NewAdmission(limit, alreadyPending int) *Admission {
	return &Admission{limit: limit, alreadyIn: alreadyPending}
}

// CanEnqueue reports whether one more item may be admitted.
func (a *Admission) CanEnqueue() bool {
	if a.limit <= 0 {
		return true
	}
	return a.alreadyIn+a.enqueued < a.limit
}

// Record counts one item as enqueued.
func (a *Admission) Record() {
	a.enqueued++
}

// Enqueued returns how many items this Admission has admitted so far.
func (a *Admission) Enqueued() int {
	return a.enqueued
}

// HitLimit reports whether the limit was reached (§4.7 field
// hit_max_downloads).
func (a *Admission) HitLimit() bool {
	return a.limit > 0 && a.alreadyIn+a.enqueued >= a.limit
}
