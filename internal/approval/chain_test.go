package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	subject = Subject{Class: "BE_CSE_G1", Department: "CSE"}
	tutor   = Actor{ID: "t1", Name: "Tutor One", Role: RoleTutor, Class: "BE CSE G1"}
	pc      = Actor{ID: "p1", Name: "Coordinator", Role: RoleProgramCoordinator, Department: "CSE"}
	hod     = Actor{ID: "h1", Name: "HOD One", Role: RoleHOD, Department: "Dept CSE"}
	dean    = Actor{ID: "d1", Name: "Dean One", Role: RoleDean}
	now     = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
)

func TestStart(t *testing.T) {
	c := NewChain(false)
	st := c.Start()

	assert.Equal(t, StatusSubmitted, st.Status)
	assert.Equal(t, StageTutor, st.CurrentStage)
	assert.Equal(t, []Stage{StageTutor, StageHOD, StageDean}, c.Stages())
	for _, stage := range c.Stages() {
		assert.Equal(t, StagePending, st.Record(stage).Status)
	}
	assert.Equal(t, "submitted", c.Phase(&st))
}

func TestAct_TutorApproveAdvancesOnly(t *testing.T) {
	c := NewChain(false)
	st := c.Start()

	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "ok", now))

	assert.Equal(t, StageHOD, st.CurrentStage)
	assert.Equal(t, StatusSubmitted, st.Status)
	rec := st.Record(StageTutor)
	assert.Equal(t, StageApproved, rec.Status)
	assert.Equal(t, "ok", rec.Comment)
	assert.Equal(t, "Tutor One", rec.ActorName)
	require.NotNil(t, rec.ActedAt)
	assert.Equal(t, now, *rec.ActedAt)
	assert.Equal(t, StageRecord{Status: StagePending}, st.Record(StageHOD))
	assert.Equal(t, StageRecord{Status: StagePending}, st.Record(StageDean))
	assert.Equal(t, "hod_review", c.Phase(&st))
}

func TestAct_TutorRejectIsTerminal(t *testing.T) {
	c := NewChain(false)
	st := c.Start()

	require.NoError(t, c.Act(&st, tutor, subject, ActionReject, "wrong form", now))

	assert.Equal(t, StageDone, st.CurrentStage)
	assert.Equal(t, StatusRejected, st.Status)
	assert.Equal(t, "wrong form", st.FinalRejectionReason)
	assert.Equal(t, StagePending, st.Record(StageHOD).Status)

	err := c.Act(&st, hod, subject, ActionApprove, "", now)
	assert.ErrorIs(t, err, ErrInvalidStage)
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, StagePending, st.Record(StageHOD).Status)
}

func TestAct_FullApproval(t *testing.T) {
	c := NewChain(false)
	st := c.Start()

	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "", now))
	require.NoError(t, c.Act(&st, hod, subject, ActionApprove, "", now))
	require.NoError(t, c.Act(&st, Actor{ID: "pr", Name: "Principal", Role: RolePrincipal}, subject, ActionApprove, "granted", now))

	assert.Equal(t, StageDone, st.CurrentStage)
	assert.Equal(t, StatusApproved, st.Status)
	assert.Equal(t, "approved", c.Phase(&st))
	assert.ErrorIs(t, c.Act(&st, dean, subject, ActionApprove, "", now), ErrTerminal)
}

func TestAct_GuardsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		action  Action
		wantErr error
	}{
		{"hod while tutor stage active", hod, ActionApprove, ErrInvalidStage},
		{"dean while tutor stage active", dean, ActionReject, ErrInvalidStage},
		{"student", Actor{Role: RoleStudent}, ActionApprove, ErrUnauthorized},
		{"program coordinator without that stage", pc, ActionApprove, ErrUnauthorized},
		{"tutor of another class", Actor{Role: RoleTutor, Class: "BE_ECE_G2"}, ActionApprove, ErrUnauthorized},
		{"tutor without class", Actor{Role: RoleTutor}, ActionApprove, ErrUnauthorized},
		{"tutor of a group sharing a prefix", Actor{Role: RoleTutor, Class: "BE_CSE_G10"}, ActionApprove, ErrUnauthorized},
		{"tutor with only a degree code", Actor{Role: RoleTutor, Class: "BE"}, ActionApprove, ErrUnauthorized},
		{"unknown action", tutor, Action("escalate"), ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(false)
			st := c.Start()
			before := c.Start()

			err := c.Act(&st, tt.actor, subject, tt.action, "x", now)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, st)
		})
	}
}

func TestAct_HODScopeUsesNormalizedContainment(t *testing.T) {
	c := NewChain(false)
	st := c.Start()
	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "", now))

	other := Actor{Role: RoleHOD, Department: "ECE"}
	assert.ErrorIs(t, c.Act(&st, other, subject, ActionApprove, "", now), ErrUnauthorized)
	assert.Equal(t, StageHOD, st.CurrentStage)

	require.NoError(t, c.Act(&st, Actor{Role: RoleHOD, Department: "cse"}, subject, ActionApprove, "", now))
	assert.Equal(t, StageDean, st.CurrentStage)
}

func TestChain_WithProgramCoordinator(t *testing.T) {
	c := NewChain(true)
	st := c.Start()
	assert.Equal(t, []Stage{StageTutor, StageProgramCoordinator, StageHOD, StageDean}, c.Stages())

	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "", now))
	assert.Equal(t, StageProgramCoordinator, st.CurrentStage)
	assert.ErrorIs(t, c.Act(&st, hod, subject, ActionApprove, "", now), ErrInvalidStage)

	require.NoError(t, c.Act(&st, pc, subject, ActionApprove, "", now))
	assert.Equal(t, StageHOD, st.CurrentStage)
	assert.Equal(t, "hod_review", c.Phase(&st))
}

func TestView(t *testing.T) {
	c := NewChain(false)
	st := c.Start()
	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "ok", now))

	steps := c.View(&st)

	require.Len(t, steps, 3)
	assert.Equal(t, "approved", steps[0].Status)
	assert.Equal(t, "Tutor One", steps[0].Actor)
	assert.Equal(t, "ok", steps[0].Comment)
	assert.Equal(t, "pending", steps[1].Status)
	assert.Equal(t, "waiting", steps[2].Status)

	require.NoError(t, c.Act(&st, hod, subject, ActionReject, "no", now))
	steps = c.View(&st)
	assert.Equal(t, "rejected", steps[1].Status)
	assert.Equal(t, "waiting", steps[2].Status)
}

func TestCanView(t *testing.T) {
	c := NewChain(false)
	st := c.Start()

	assert.True(t, c.CanView(&st, tutor, subject))
	assert.False(t, c.CanView(&st, hod, subject))

	require.NoError(t, c.Act(&st, tutor, subject, ActionApprove, "", now))
	assert.True(t, c.CanView(&st, tutor, subject))
	assert.True(t, c.CanView(&st, hod, subject))
	assert.False(t, c.CanView(&st, Actor{Role: RoleHOD, Department: "MECH"}, subject))
	assert.False(t, c.CanView(&st, Actor{Role: RoleStudent}, subject))
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"TUTOR":                  RoleTutor,
		"Class Advisor":          RoleTutor,
		"pc":                     RoleProgramCoordinator,
		"Programme_Coordinator":  RoleProgramCoordinator,
		"H.O.D":                  RoleUnknown,
		"Head of the Department": RoleHOD,
		"hod":                    RoleHOD,
		"Principal":              RolePrincipal,
		" dean ":                 RoleDean,
	}
	for in, want := range tests {
		got, err := ParseRole(in)
		if want == RoleUnknown {
			assert.Error(t, err, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Approved")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, a)

	_, err = ParseAction("maybe")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
