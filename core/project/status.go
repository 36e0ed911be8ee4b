package project

import (
	"encoding/json"
	"fmt"
)

type StatusKind int

const (
	AwaitingFirstApproval StatusKind = iota
	AwaitingSecondApproval
	AwaitingThirdApproval
	FullyApproved
	Rejected
)

var statusCodes = map[StatusKind]string{
	AwaitingFirstApproval:  "awaiting_first",
	AwaitingSecondApproval: "awaiting_second",
	AwaitingThirdApproval:  "awaiting_third",
	FullyApproved:          "approved",
	Rejected:               "rejected",
}

// StatusCodes lists every status code in workflow order.
var StatusCodes = []string{"awaiting_first", "awaiting_second", "awaiting_third", "approved", "rejected"}

// Status is the display status derived from the approval timestamps of a Project.
type Status struct {
	Kind StatusKind
	// RejectedStage is the highest approval stage reached before rejection (Rejected only).
	RejectedStage int
}

func (s Status) Code() string { return statusCodes[s.Kind] }

// Pending reports whether the project still awaits a decision.
func (s Status) Pending() bool {
	return s.Kind == AwaitingFirstApproval || s.Kind == AwaitingSecondApproval || s.Kind == AwaitingThirdApproval
}

func (s Status) String() string {
	switch s.Kind {
	case Rejected:
		return fmt.Sprintf("rejected at stage %d", s.RejectedStage)
	case FullyApproved:
		return "fully approved"
	case AwaitingThirdApproval:
		return "awaiting third-stage approval"
	case AwaitingSecondApproval:
		return "awaiting second-stage approval"
	default:
		return "awaiting first-stage approval"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Code())
}

// StatusOf projects the four nullable timestamps of p onto a display status.
// Precedence is fixed (first match wins) and does not assume the timestamps were set in order:
//  1. rejected and not third-approved
//  2. third-approved
//  3. second-approved
//  4. first-approved
//  5. none
func StatusOf(p Project) Status {
	switch {
	case p.RejectedAt != nil && p.ThirdApprovedAt == nil:
		stage := 0
		if p.SecondApprovedAt != nil {
			stage = 2
		} else if p.FirstApprovedAt != nil {
			stage = 1
		}
		return Status{Kind: Rejected, RejectedStage: stage}
	case p.ThirdApprovedAt != nil:
		return Status{Kind: FullyApproved}
	case p.SecondApprovedAt != nil:
		return Status{Kind: AwaitingThirdApproval}
	case p.FirstApprovedAt != nil:
		return Status{Kind: AwaitingSecondApproval}
	default:
		return Status{Kind: AwaitingFirstApproval}
	}
}

// NextStage returns the approval stage (1-3) p is waiting for, or 0 when it is decided.
func (p Project) NextStage() int {
	switch s := StatusOf(p); s.Kind {
	case AwaitingFirstApproval:
		return 1
	case AwaitingSecondApproval:
		return 2
	case AwaitingThirdApproval:
		return 3
	default:
		return 0
	}
}
