package processor

// Outcome is the result of one job attempt.
type Outcome int

const (
	// OutcomeDelivered means the datasheet reached the requester.
	OutcomeDelivered Outcome = iota
	// OutcomeRenderFailed means no PDF was produced. No email was sent and no
	// history was written.
	OutcomeRenderFailed
	// OutcomeDeliveryFailed means the PDF was produced but the requester
	// email failed. History records the failure.
	OutcomeDeliveryFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRenderFailed:
		return "render_failed"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}
