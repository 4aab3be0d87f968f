package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
)

var (
	ErrUnauthorized  = errors.New("UNAUTHORIZED")
	ErrInvalidStage  = errors.New("INVALID_STAGE")
	ErrInvalidAction = errors.New("INVALID_ACTION")
	// ErrTerminal is an ErrInvalidStage for requests that already reached a verdict.
	ErrTerminal = fmt.Errorf("%w: request already decided", ErrInvalidStage)
)

// Stage is one role-gated checkpoint, or StageDone once the chain terminated.
type Stage string

const (
	StageTutor              Stage = "tutor"
	StageProgramCoordinator Stage = "program_coordinator"
	StageHOD                Stage = "hod"
	StageDean               Stage = "dean"
	StageDone               Stage = "done"
)

// Status is the overall outcome of a request.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// ParseStatus accepts the three overall statuses. "pending" is read as submitted.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "submitted", "pending":
		return StatusSubmitted, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// StageStatus is the decision recorded on one stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageApproved StageStatus = "approved"
	StageRejected StageStatus = "rejected"
)

// StageRecord is written exactly once, by the reviewer who acted on the stage.
type StageRecord struct {
	Status    StageStatus `json:"status" firestore:"status"`
	ActorID   string      `json:"actorId,omitempty" firestore:"actorId,omitempty"`
	ActorName string      `json:"actorName,omitempty" firestore:"actorName,omitempty"`
	ActedAt   *time.Time  `json:"actedAt,omitempty" firestore:"actedAt,omitempty"`
	Comment   string      `json:"comment,omitempty" firestore:"comment,omitempty"`
}

// State is the approval portion of a request. Exactly one stage is current
// until the chain terminates at StageDone. Stages is keyed by Stage name.
type State struct {
	Status               Status                 `json:"status" firestore:"status"`
	CurrentStage         Stage                  `json:"currentStage" firestore:"currentStage"`
	Stages               map[string]StageRecord `json:"stages" firestore:"stages"`
	FinalRejectionReason string                 `json:"finalRejectionReason,omitempty" firestore:"finalRejectionReason,omitempty"`
}

// Terminal reports whether no further action is possible.
func (s *State) Terminal() bool {
	return s.CurrentStage == StageDone || s.Status == StatusApproved || s.Status == StatusRejected
}

// Record returns the sub-record of a stage.
func (s *State) Record(stage Stage) StageRecord {
	return s.Stages[string(stage)]
}

// Subject is the part of a request that decides reviewer scope.
type Subject struct {
	Class      string
	Department string
}

type scopeKind int

const (
	scopeNone scopeKind = iota
	scopeClass
	scopeDepartment
)

type stageRule struct {
	stage Stage
	label string
	roles []Role
	scope scopeKind
}

var (
	tutorRule = stageRule{stage: StageTutor, label: "Tutor", roles: []Role{RoleTutor}, scope: scopeClass}
	pcRule    = stageRule{stage: StageProgramCoordinator, label: "Program Coordinator", roles: []Role{RoleProgramCoordinator}, scope: scopeDepartment}
	hodRule   = stageRule{stage: StageHOD, label: "HOD", roles: []Role{RoleHOD}, scope: scopeDepartment}
	deanRule  = stageRule{stage: StageDean, label: "Dean", roles: []Role{RoleDean, RolePrincipal}, scope: scopeNone}
)

// Chain is an ordered list of stages. The zero value is not usable; build one
// with NewChain.
type Chain struct {
	rules []stageRule
}

// NewChain returns the tutor, hod, dean chain, with a program coordinator
// stage after the tutor when withProgramCoordinator is set.
func NewChain(withProgramCoordinator bool) *Chain {
	rules := []stageRule{tutorRule}
	if withProgramCoordinator {
		rules = append(rules, pcRule)
	}
	rules = append(rules, hodRule, deanRule)
	return &Chain{rules: rules}
}

// Stages lists the chain's stages in order.
func (c *Chain) Stages() []Stage {
	out := make([]Stage, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.stage
	}
	return out
}

// Start returns the state of a freshly submitted request: first stage active,
// every stage pending.
func (c *Chain) Start() State {
	stages := make(map[string]StageRecord, len(c.rules))
	for _, r := range c.rules {
		stages[string(r.stage)] = StageRecord{Status: StagePending}
	}
	return State{
		Status:       StatusSubmitted,
		CurrentStage: c.rules[0].stage,
		Stages:       stages,
	}
}

// StageFor returns the stage a role reviews in this chain.
func (c *Chain) StageFor(role Role) (Stage, bool) {
	for _, r := range c.rules {
		for _, allowed := range r.roles {
			if allowed == role {
				return r.stage, true
			}
		}
	}
	return "", false
}

func (c *Chain) rule(stage Stage) (int, stageRule, bool) {
	for i, r := range c.rules {
		if r.stage == stage {
			return i, r, true
		}
	}
	return -1, stageRule{}, false
}

// InScope reports whether the actor's class or department covers the subject
// at the given stage. Codes are compared as normalized token runs.
func (c *Chain) InScope(stage Stage, actor Actor, subject Subject) bool {
	_, r, ok := c.rule(stage)
	if !ok {
		return false
	}
	switch r.scope {
	case scopeClass:
		return audit.ClassContains(actor.Class, subject.Class)
	case scopeDepartment:
		return audit.CodeContains(actor.Department, subject.Department)
	default:
		return true
	}
}

// Guard checks whether actor may act on the state's current stage. It never
// mutates state.
func (c *Chain) Guard(state *State, actor Actor, subject Subject) error {
	if state.Terminal() {
		return ErrTerminal
	}
	stage, ok := c.StageFor(actor.Role)
	if !ok {
		return fmt.Errorf("%w: role %q reviews no stage", ErrUnauthorized, actor.Role)
	}
	if stage != state.CurrentStage {
		return fmt.Errorf("%w: %s cannot act while the request is at %s", ErrInvalidStage, stage, state.CurrentStage)
	}
	if !c.InScope(stage, actor, subject) {
		return fmt.Errorf("%w: request is outside the actor's class or department", ErrUnauthorized)
	}
	return nil
}

// Act applies a reviewer decision. On any guard failure state is left
// untouched. Approval advances to the next stage, or terminates as approved
// at the last one; rejection terminates at any stage.
func (c *Chain) Act(state *State, actor Actor, subject Subject, action Action, comment string, now time.Time) error {
	if action != ActionApprove && action != ActionReject {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err := c.Guard(state, actor, subject); err != nil {
		return err
	}
	idx, _, ok := c.rule(state.CurrentStage)
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidStage, state.CurrentStage)
	}

	acted := now
	rec := StageRecord{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		ActedAt:   &acted,
		Comment:   comment,
	}
	if state.Stages == nil {
		state.Stages = make(map[string]StageRecord, len(c.rules))
	}

	if action == ActionReject {
		rec.Status = StageRejected
		state.Stages[string(state.CurrentStage)] = rec
		state.CurrentStage = StageDone
		state.Status = StatusRejected
		state.FinalRejectionReason = comment
		return nil
	}

	rec.Status = StageApproved
	state.Stages[string(state.CurrentStage)] = rec
	if idx == len(c.rules)-1 {
		state.CurrentStage = StageDone
		state.Status = StatusApproved
		return nil
	}
	state.CurrentStage = c.rules[idx+1].stage
	return nil
}

// Phase collapses a state into one enumeration:
// submitted (tutor active), <stage>_review, approved or rejected.
func (c *Chain) Phase(state *State) string {
	switch {
	case state.Status == StatusApproved:
		return string(StatusApproved)
	case state.Status == StatusRejected:
		return string(StatusRejected)
	case state.CurrentStage == c.rules[0].stage:
		return string(StatusSubmitted)
	default:
		return string(state.CurrentStage) + "_review"
	}
}

// Step is one rendered entry of the approval chain.
type Step struct {
	Stage   Stage      `json:"stage"`
	Label   string     `json:"label"`
	Status  string     `json:"status"`
	Actor   string     `json:"actor,omitempty"`
	ActedAt *time.Time `json:"actedAt,omitempty"`
	Comment string     `json:"comment,omitempty"`
}

// View renders every stage in order. A stage without a decision is "pending"
// while it is current and "waiting" otherwise.
func (c *Chain) View(state *State) []Step {
	steps := make([]Step, 0, len(c.rules))
	for _, r := range c.rules {
		rec := state.Stages[string(r.stage)]
		step := Step{Stage: r.stage, Label: r.label}
		switch {
		case rec.Status == StageApproved || rec.Status == StageRejected:
			step.Status = string(rec.Status)
			step.Actor = rec.ActorName
			step.ActedAt = rec.ActedAt
			step.Comment = rec.Comment
		case state.CurrentStage == r.stage:
			step.Status = "pending"
		default:
			step.Status = "waiting"
		}
		steps = append(steps, step)
	}
	return steps
}

// Reviewed reports whether a decision has been recorded on stage.
func (c *Chain) Reviewed(state *State, stage Stage) bool {
	rec, ok := state.Stages[string(stage)]
	return ok && (rec.Status == StageApproved || rec.Status == StageRejected)
}

// CanView reports whether a staff actor may read a request: the stage they
// review is current or already decided, and the request is in their scope.
func (c *Chain) CanView(state *State, actor Actor, subject Subject) bool {
	stage, ok := c.StageFor(actor.Role)
	if !ok {
		return false
	}
	if stage != state.CurrentStage && !c.Reviewed(state, stage) {
		return false
	}
	return c.InScope(stage, actor, subject)
}
